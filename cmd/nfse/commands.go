package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lb-conn/nfse-dps/application/usecases"
	"github.com/lb-conn/nfse-dps/domain/credential"
	"github.com/lb-conn/nfse-dps/domain/order"
	"github.com/lb-conn/nfse-dps/domain/report"
	"github.com/lb-conn/nfse-dps/setup"
)

func signCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign",
		Short: "Sign a DPS with the configured certificate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			xmlData, err := readInput(cmd)
			if err != nil {
				return err
			}
			return withSetup(cmd, setup.Options{}, func(s *setup.Setup) error {
				signed, err := s.App.Sign(xmlData)
				if err != nil {
					return fmt.Errorf("error signing XML: %w", err)
				}
				return writeOutput(cmd, signed)
			})
		},
	}
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the signature of a signed DPS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			xmlData, err := readInput(cmd)
			if err != nil {
				return err
			}
			full, _ := cmd.Flags().GetBool("report")
			return withSetup(cmd, setup.Options{}, func(s *setup.Setup) error {
				if full {
					r, err := s.App.Inspect(xmlData)
					if err != nil {
						return err
					}
					return printReport(cmd, r)
				}
				if err := s.App.Verify(xmlData); err != nil {
					return fmt.Errorf("signature verification failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
				return nil
			})
		},
	}
	cmd.Flags().Bool("report", false, "print the full report (signature, certificate, rules and schema)")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run the structural rules and, when configured, the XSD schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			xmlData, err := readInput(cmd)
			if err != nil {
				return err
			}
			return withSetup(cmd, setup.Options{}, func(s *setup.Setup) error {
				r, err := s.App.Validate(xmlData)
				if err != nil {
					return err
				}
				return printReport(cmd, r)
			})
		},
	}
}

func compressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compress",
		Short: "Pack a signed DPS as gzip + Base64 for transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			xmlData, err := readInput(cmd)
			if err != nil {
				return err
			}
			return withSetup(cmd, setup.Options{}, func(s *setup.Setup) error {
				payload, err := s.App.Compress(xmlData)
				if err != nil {
					return err
				}
				return writeOutput(cmd, []byte(payload+"\n"))
			})
		},
	}
}

func decompressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decompress",
		Short: "Unpack a gzip + Base64 payload back to XML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, err := readInput(cmd)
			if err != nil {
				return err
			}
			return withSetup(cmd, setup.Options{}, func(s *setup.Setup) error {
				xmlData, err := s.App.Decompress(strings.TrimSpace(string(encoded)))
				if err != nil {
					return err
				}
				return writeOutput(cmd, xmlData)
			})
		},
	}
}

func emitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Build, validate, sign and pack a DPS from an order in JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd)
			if err != nil {
				return err
			}
			var snapshot order.Snapshot
			if err := json.Unmarshal(raw, &snapshot); err != nil {
				return fmt.Errorf("invalid order JSON: %w", err)
			}
			signedPath, _ := cmd.Flags().GetString("signed")

			return withSetup(cmd, setup.Options{Emission: true}, func(s *setup.Setup) error {
				art, err := s.App.Emit(cmd.Context(), snapshot)
				var verr *usecases.ValidationFailedError
				if errors.As(err, &verr) {
					_ = printReport(cmd, verr.Report)
					return err
				}
				if err != nil {
					return err
				}
				if signedPath != "" {
					if err := os.WriteFile(signedPath, art.Signed, 0o644); err != nil {
						return fmt.Errorf("failed to write signed XML: %w", err)
					}
				}
				return printJSON(cmd, art)
			})
		},
	}
	cmd.Flags().String("signed", "", "also write the signed XML to this file")
	return cmd
}

func certCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cert [signed.xml]",
		Short: "Show the configured certificate, or the one embedded in a signed DPS",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSetup(cmd, setup.Options{}, func(s *setup.Setup) error {
				var info credential.Info
				switch {
				case len(args) == 1:
					xmlData, err := os.ReadFile(args[0])
					if err != nil {
						return fmt.Errorf("failed to read input file: %w", err)
					}
					embedded, err := s.App.CertificateInfo(xmlData)
					if err != nil {
						return err
					}
					info = *embedded
				case s.Identity != nil:
					info = credential.ExtractInfo(s.Identity.Certificate)
				default:
					return errors.New("no certificate configured: set NFSE_CERT_ID or pass a signed XML")
				}

				now := time.Now()
				return printJSON(cmd, struct {
					credential.Info
					Status   string `json:"status"`
					DaysLeft int    `json:"days_left"`
				}{info, info.StatusAt(now).String(), info.DaysLeft(now)})
			})
		},
	}
}

func sequenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect or seed the DPS numbering",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "last <series>",
		Short: "Print the last number reserved for a series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid series %q", args[0])
			}
			return withSetup(cmd, setup.Options{Sequence: true}, func(s *setup.Setup) error {
				last, err := s.Sequence.Last(cmd.Context(), series)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), last)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "seed <series> <last>",
		Short: "Raise the counter of a series, e.g. when migrating from another emitter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid series %q", args[0])
			}
			last, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid number %q", args[1])
			}
			return withSetup(cmd, setup.Options{Sequence: true}, func(s *setup.Setup) error {
				if err := s.Sequence.Seed(cmd.Context(), series, last); err != nil {
					return err
				}
				current, err := s.Sequence.Last(cmd.Context(), series)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "series %d: last %d\n", series, current)
				return nil
			})
		},
	})
	return cmd
}

// printReport escreve o relatório e falha o comando quando há erros.
func printReport(cmd *cobra.Command, r report.Report) error {
	if err := printJSON(cmd, r); err != nil {
		return err
	}
	if !r.Valid {
		return fmt.Errorf("document invalid: %d error(s)", len(r.Errors))
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(cmd, append(data, '\n'))
}
