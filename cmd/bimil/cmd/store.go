package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmcleod/bimil/internal/config"
	"github.com/jmcleod/bimil/internal/util"
	bboltstorage "github.com/jmcleod/bimil/storage/bbolt"
	"github.com/jmcleod/bimil/storage/memory"
	"github.com/jmcleod/bimil/storage/postgres"
	"github.com/jmcleod/bimil/vault"
)

var (
	storeGetOut   string
	storeGetForce bool
)

// openStore opens the configured backend. The returned func releases it.
func openStore(ctx context.Context) (*vault.Store, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	docOpts, err := documentOptions()
	if err != nil {
		return nil, nil, err
	}
	opts := []vault.Option{
		vault.WithNamespace(cfg.Store.Namespace),
		vault.WithDocumentOptions(docOpts...),
	}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		return vault.New(memory.NewRepository(), opts...), func() {}, nil

	case config.BackendBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(cfg.Store.Path, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open document store: %w", err)
		}
		cache, err := vault.NewBoltVersionCache(repo.DB())
		if err != nil {
			repo.Close()
			return nil, nil, fmt.Errorf("failed to open version cache: %w", err)
		}
		opts = append(opts, vault.WithVersionCache(cache))
		return vault.New(repo, opts...), func() { repo.Close() }, nil

	case config.BackendPostgres:
		repo, err := postgres.NewRepositoryFromDSN(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		cache, err := postgres.NewVersionCache(ctx, repo.Pool())
		if err != nil {
			repo.Close()
			return nil, nil, fmt.Errorf("failed to open version cache: %w", err)
		}
		opts = append(opts, vault.WithVersionCache(cache))
		return vault.New(repo, opts...), repo.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage documents in the document store",
}

var storeImportCmd = &cobra.Command{
	Use:   "import <name> <legacy-file>",
	Short: "Convert a legacy container and add it to the store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		passphrase, err := readPassphrase(cmd, "Legacy passphrase: ")
		if err != nil {
			return err
		}
		defer util.WipeBytes(passphrase)

		doc, version, err := s.ImportLegacy(ctx, args[0], f, passphrase)
		if err != nil {
			return err
		}
		defer doc.Destroy()
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries as %s (version %d)\n", doc.Entries().Len(), args[0], version)
		return nil
	},
}

var storePutCmd = &cobra.Command{
	Use:   "put <name> <file>",
	Short: "Store a document file under a name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		doc, err := openDocument(cmd, args[1])
		if err != nil {
			return err
		}
		defer doc.Destroy()

		s, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		version, err := s.Put(ctx, args[0], doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (version %d)\n", args[0], version)
		return nil
	},
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		names, err := s.List(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			version, err := s.Version(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tv%d\n", name, version)
		}
		return nil
	},
}

var storeGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Open a stored document and list its entries or write it to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if storeGetOut != "" {
			if err := checkOverwrite(storeGetOut, storeGetForce); err != nil {
				return err
			}
		}
		s, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		passphrase, err := readPassphrase(cmd, "Passphrase: ")
		if err != nil {
			return err
		}
		defer util.WipeBytes(passphrase)

		doc, err := s.Get(ctx, args[0], passphrase)
		if err != nil {
			return err
		}
		defer doc.Destroy()
		if storeGetOut == "" {
			return writeEntryTable(cmd.OutOrStdout(), doc.Entries().Entries(), "")
		}
		if err := saveDocumentFile(doc, storeGetOut); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s to %s\n", args[0], storeGetOut)
		return nil
	},
}

var storeHistoryCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "List the superseded versions of a stored document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		versions, err := s.History(ctx, args[0])
		if err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Fprintf(cmd.OutOrStdout(), "v%d\n", v)
		}
		return nil
	},
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored document and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		if err := s.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeImportCmd, storePutCmd, storeListCmd, storeGetCmd, storeHistoryCmd, storeDeleteCmd)
	storeGetCmd.Flags().StringVarP(&storeGetOut, "out", "o", "", "write the document to this file")
	storeGetCmd.Flags().BoolVarP(&storeGetForce, "force", "f", false, "overwrite the output file")
}
