package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/lookout/pkg/types"
)

// Profile commands
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved session configs",
}

var profileSaveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Save a session config under NAME",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var base types.SessionConfig
		if existing, err := store.GetProfile(args[0]); err == nil {
			base = existing.Config
		}

		profile := &types.Profile{Name: args[0], Config: sessionConfigFromFlags(cmd, base)}
		if err := store.SaveProfile(profile); err != nil {
			return err
		}
		fmt.Printf("✓ Saved profile %q (%s)\n", profile.Name, profile.Config.Endpoint())
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		profiles, err := store.ListProfiles()
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("No profiles saved")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCAMERA\tPERSON\tUPDATED")
		for _, p := range profiles {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", p.Name, p.Config.Endpoint(),
				p.Config.EnablePersonDetection, p.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteProfile(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Deleted profile %q\n", args[0])
		return nil
	},
}

var profileExportCmd = &cobra.Command{
	Use:   "export NAME",
	Short: "Print a profile as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		profile, err := store.GetProfile(args[0])
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(profile)
	},
}

var profileImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Save a profile from a YAML file",
	Long: `Save a profile from a YAML file produced by 'lookout profile export'.

Examples:
  lookout profile import -f porch.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filename, _ := cmd.Flags().GetString("file")

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		var profile types.Profile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SaveProfile(&profile); err != nil {
			return err
		}
		fmt.Printf("✓ Imported profile %q\n", profile.Name)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileSaveCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileExportCmd)
	profileCmd.AddCommand(profileImportCmd)

	addSessionFlags(profileSaveCmd)

	profileImportCmd.Flags().StringP("file", "f", "", "YAML file to import (required)")
	_ = profileImportCmd.MarkFlagRequired("file")
}
