package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lb-conn/nfse-dps/infrastructure/config"
	"github.com/lb-conn/nfse-dps/infrastructure/logger"
	"github.com/lb-conn/nfse-dps/setup"
)

var Version = "dev"

// O CLI lê um XML (ou pedido em JSON) da flag --data, do --file ou da entrada
// padrão e escreve o resultado na saída padrão. Logs vão para stderr.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nfse",
		Short:         "Build, sign, validate and pack NFS-e DPS documents",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("file", "f", "", "path to the input file")
	rootCmd.PersistentFlags().String("data", "", "input content as a string (takes precedence over --file)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "write the result to this file instead of stdout")

	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(compressCmd())
	rootCmd.AddCommand(decompressCmd())
	rootCmd.AddCommand(emitCmd())
	rootCmd.AddCommand(certCmd())
	rootCmd.AddCommand(sequenceCmd())

	return rootCmd
}

// withSetup carrega a configuração, monta a aplicação e libera os recursos
// ao final do comando.
func withSetup(cmd *cobra.Command, opts setup.Options, fn func(*setup.Setup) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment)

	s, err := setup.NewSetup(cmd.Context(), cfg, log, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// readInput segue a precedência --data > --file > stdin.
func readInput(cmd *cobra.Command) ([]byte, error) {
	data, _ := cmd.Flags().GetString("data")
	file, _ := cmd.Flags().GetString("file")

	switch {
	case strings.TrimSpace(data) != "":
		return []byte(data), nil
	case strings.TrimSpace(file) != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		return b, nil
	default:
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		if len(b) == 0 {
			return nil, errors.New("no input: use --data, --file or stdin")
		}
		return b, nil
	}
}

func writeOutput(cmd *cobra.Command, data []byte) error {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
