package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leanbalancer/admindash/internal/preference"
)

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Read or change the persisted dashboard theme",
	Long: `Reads or changes the theme stored in the configured preference backend.
A running dashboard watching the same file picks the change up.`,
}

var themeGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the persisted theme",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *preference.Store) error {
			fmt.Fprintln(cmd.OutOrStdout(), s.Theme())
			return nil
		})
	},
}

var themeSetCmd = &cobra.Command{
	Use:       "set light|dark",
	Short:     "Persist a theme",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(preference.Light), string(preference.Dark)},
	RunE: func(cmd *cobra.Command, args []string) error {
		theme, err := preference.ParseTheme(args[0])
		if err != nil {
			return err
		}
		return withStore(func(s *preference.Store) error {
			s.Set(theme)
			if !s.Persisted() {
				return fmt.Errorf("theme %s could not be persisted", theme)
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		})
	},
}

var themeToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Flip the persisted theme and print the new value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *preference.Store) error {
			theme := s.Toggle()
			if !s.Persisted() {
				return fmt.Errorf("theme %s could not be persisted", theme)
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		})
	},
}

func init() {
	themeCmd.AddCommand(themeGetCmd, themeSetCmd, themeToggleCmd)
}

func withStore(fn func(*preference.Store) error) error {
	backend, err := preference.OpenBackend(cfg.Preferences)
	if err != nil {
		return err
	}
	store := preference.Open(backend, nil, logger.Named("preference"))
	defer store.Close()
	return fn(store)
}
