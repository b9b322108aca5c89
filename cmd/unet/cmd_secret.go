package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/munet-project/unet/pkg/auth"
	"github.com/munet-project/unet/pkg/secrets"
)

var (
	secretBackend string
	secretTTL     time.Duration
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Store and retrieve encrypted secrets (BGP passwords, SNMP communities, API tokens)",
}

func secretsFilePath() string {
	return filepath.Join(app.configDir, "secrets.json")
}

func promptPassphrase(prompt string) (string, error) {
	fmt.Print(prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(data), nil
}

// masterPassphraseEnvVar is checked before falling back to an interactive
// prompt, so the file and keyring backends can be driven non-interactively
// (scripted runs, CLI integration tests).
const masterPassphraseEnvVar = "UNET_MASTER_PASSWORD"

func resolvePassphrase(prompt string) (string, error) {
	if v := os.Getenv(masterPassphraseEnvVar); v != "" {
		return v, nil
	}
	return promptPassphrase(prompt)
}

// openManager builds a Manager over the configured backend. The file and
// keyring backends both derive the master key from a passphrase (read from
// UNET_MASTER_PASSWORD if set, otherwise prompted interactively); the file
// backend uses its fixed salt, and the keyring backend keeps a generated
// salt in the OS keyring. The env backend uses no master key.
func openManager() (*secrets.Manager, error) {
	var backend secrets.Backend
	var masterKey secrets.MasterKey

	switch secretBackend {
	case "file":
		path := secretsFilePath()
		fb := secrets.NewFileBackend(path)
		backend = fb
		salt, _, err := fb.LoadSalt()
		if err != nil {
			return nil, fmt.Errorf("loading salt: %w", err)
		}
		passphrase, err := resolvePassphrase("secret store passphrase: ")
		if err != nil {
			return nil, err
		}
		masterKey = secrets.DeriveMasterKey(passphrase, salt)
	case "keyring":
		kb := secrets.NewKeyringBackend()
		backend = kb
		salt, ok, err := kb.LoadSalt()
		if err != nil {
			return nil, fmt.Errorf("loading salt: %w", err)
		}
		if !ok {
			if _, err := os.Stdout.WriteString("no master salt found in the OS keyring; generating one\n"); err != nil {
				return nil, err
			}
			k, err := secrets.GenerateMasterKey()
			if err != nil {
				return nil, err
			}
			copy(salt[:], k[:16])
			if err := kb.SaveSalt(salt); err != nil {
				return nil, fmt.Errorf("saving salt: %w", err)
			}
		}
		passphrase, err := resolvePassphrase("secret store passphrase: ")
		if err != nil {
			return nil, err
		}
		masterKey = secrets.DeriveMasterKey(passphrase, salt)
	case "env":
		backend = secrets.NewEnvBackend()
	default:
		return nil, fmt.Errorf("unknown secret backend %q (use file, keyring, or env)", secretBackend)
	}

	m := secrets.NewManager(backend, masterKey)
	if err := m.Load(); err != nil {
		return nil, fmt.Errorf("loading secrets: %w", err)
	}
	return m, nil
}

var secretGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Retrieve a secret's plaintext value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermSecretRead, nil); err != nil {
			return err
		}
		m, err := openManager()
		if err != nil {
			return err
		}
		value, err := m.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(string(value))
		return nil
	},
}

var secretSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Store a secret's value, read from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermSecretWrite, nil); err != nil {
			return err
		}
		if !app.executeMode {
			fmt.Println(yellow("PREVIEW: would store secret " + args[0] + ". Use -x to actually store it."))
			return nil
		}

		value, err := promptPassphrase("secret value: ")
		if err != nil {
			return err
		}

		m, err := openManager()
		if err != nil {
			return err
		}

		var expires *time.Time
		if secretTTL > 0 {
			t := time.Now().Add(secretTTL)
			expires = &t
		}

		if err := m.Store(args[0], []byte(value), expires); err != nil {
			return fmt.Errorf("storing secret %q: %w", args[0], err)
		}
		fmt.Println(green("stored " + args[0]))
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermSecretWrite, nil); err != nil {
			return err
		}
		if !app.executeMode {
			fmt.Println(yellow("PREVIEW: would delete secret " + args[0] + ". Use -x to actually delete it."))
			return nil
		}
		m, err := openManager()
		if err != nil {
			return err
		}
		if err := m.Delete(args[0]); err != nil {
			return fmt.Errorf("deleting secret %q: %w", args[0], err)
		}
		fmt.Println(green("deleted " + args[0]))
		return nil
	},
}

var secretListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored secret names and metadata (never plaintext)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermSecretRead, nil); err != nil {
			return err
		}
		m, err := openManager()
		if err != nil {
			return err
		}
		meta := m.ListMetadata()

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(meta)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tALGORITHM\tCREATED\tEXPIRES")
		for _, s := range meta {
			expires := "-"
			if s.ExpiresAt != nil {
				expires = s.ExpiresAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, s.Algorithm, s.CreatedAt.Format(time.RFC3339), expires)
		}
		w.Flush()
		return nil
	},
}

var secretRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Re-encrypt every stored secret under a freshly generated master key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkPermission(auth.PermSecretRotate, nil); err != nil {
			return err
		}
		if !app.executeMode {
			fmt.Println(yellow("PREVIEW: would rotate the master key. Use -x to actually rotate."))
			return nil
		}
		m, err := openManager()
		if err != nil {
			return err
		}
		newKey, err := secrets.GenerateMasterKey()
		if err != nil {
			return err
		}
		if err := m.Rotate(newKey); err != nil {
			return fmt.Errorf("rotating master key: %w", err)
		}
		fmt.Println(green("master key rotated"))
		return nil
	},
}

func init() {
	secretCmd.PersistentFlags().StringVar(&secretBackend, "backend", "file", "Secret backend: file, keyring, or env")
	secretSetCmd.Flags().DurationVar(&secretTTL, "ttl", 0, "Expire the secret after this duration (0 = never)")

	secretCmd.AddCommand(secretGetCmd)
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretDeleteCmd)
	secretCmd.AddCommand(secretListCmd)
	secretCmd.AddCommand(secretRotateCmd)
}
