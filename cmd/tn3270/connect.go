package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opentn3270/tn3270/codec"
	"github.com/opentn3270/tn3270/datastream"
	"github.com/opentn3270/tn3270/session"
	"github.com/opentn3270/tn3270/transport"
)

var aidByName = map[string]datastream.AID{
	"enter": datastream.AIDEnter,
	"clear": datastream.AIDClear,
	"pa1":   datastream.AIDPA1,
	"pa2":   datastream.AIDPA2,
	"pa3":   datastream.AIDPA3,
	"pf1":   datastream.AIDPF1,
	"pf2":   datastream.AIDPF2,
	"pf3":   datastream.AIDPF3,
	"pf4":   datastream.AIDPF4,
	"pf5":   datastream.AIDPF5,
	"pf6":   datastream.AIDPF6,
	"pf7":   datastream.AIDPF7,
	"pf8":   datastream.AIDPF8,
	"pf9":   datastream.AIDPF9,
	"pf10":  datastream.AIDPF10,
	"pf11":  datastream.AIDPF11,
	"pf12":  datastream.AIDPF12,
}

func newConnectCmd(yamlPath *string) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to a host and start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*yamlPath)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Host = host
			}
			if port != 0 {
				cfg.Port = port
			}
			if cfg.Host == "" {
				return fmt.Errorf("connect: --host is required (or SESSION_HOST)")
			}

			cp, ok := codec.ByID(cfg.Codepage)
			if !ok {
				return fmt.Errorf("connect: unrecognized codepage %q", cfg.Codepage)
			}

			s := session.New(session.Options{
				Host:     cfg.Host,
				Port:     cfg.Port,
				TermType: cfg.TermType,
				Size:     cfg.Size,
				Alt:      cfg.Alt,
				Codepage: cp,
				Transport: transport.Options{
					UseTLS:     cfg.UseTLS,
					SecLevel:   cfg.SecLevel,
					Verify:     cfg.TLSVerify,
					ServerName: cfg.ServerName,
					Log:        log,
				},
				FileTransferCapable: cfg.FileTransferCapable,
				Log:                 log,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := s.Connect(ctx); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer s.Close()

			return runREPL(cmd, s)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "host to connect to (overrides SESSION_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "port to connect to (overrides SESSION_PORT)")
	return cmd
}

// runREPL drives s from stdin commands until "quit" or EOF. It is a thin
// shell over Session's public operations, not part of the library surface.
func runREPL(cmd *cobra.Command, s *session.Session) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, s.ScreenText())

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "screen":
			fmt.Fprintln(out, s.ScreenText())
		case "type":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: type <text>")
				continue
			}
			if err := s.SendKeys(fields[1]); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		case "aid":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: aid <name>")
				continue
			}
			aid, ok := aidByName[strings.ToLower(fields[1])]
			if !ok {
				fmt.Fprintln(out, "unknown aid:", fields[1])
				continue
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			err := s.SendAID(ctx, aid)
			cancel()
			if err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		case "upload":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: upload <path>")
				continue
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			err := s.UploadFile(ctx, fields[1])
			cancel()
			if err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		case "download":
			if len(fields) < 2 {
				fmt.Fprintln(out, "usage: download <path>")
				continue
			}
			ok, err := s.ReceiveFile(fields[1])
			if err != nil {
				fmt.Fprintln(out, "error:", err)
			} else if !ok {
				fmt.Fprintln(out, "no download pending")
			}
		case "state":
			fmt.Fprintln(out, s.State())
		default:
			fmt.Fprintln(out, "commands: screen, type <text>, aid <name>, upload <path>, download <path>, state, quit")
		}
	}
	return scanner.Err()
}
