// Package main provides the runic CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/runic/pkg/config"
	"github.com/orneryd/runic/pkg/kv"
	"github.com/orneryd/runic/pkg/symbol"
	"github.com/orneryd/runic/pkg/vector"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "runic",
		Short: "Runic - Symbol Graph Store for LLM Agents",
		Long: `Runic is a multi-tenant symbol graph store written in Go,
pairing a key-value store with a semantic vector index.

Features:
  • Linked symbols with typed, bidirectional relationships
  • Shared global domains plus caller-private profile/session domains
  • Hybrid search: semantic similarity, structured filters, time windows
  • Pluggable storage (memory, Badger, Redis) and vector (memory, Weaviate) backends`,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: auto-discover runic.yaml)")
	rootCmd.PersistentFlags().String("caller", "", "Caller identity for scoped domains")
	rootCmd.PersistentFlags().Bool("admin", false, "Act with admin rights on global domains")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Runic v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	// Domains command group
	domainsCmd := &cobra.Command{
		Use:   "domains",
		Short: "Domain operations",
	}
	domainsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List accessible domains",
		RunE:  runDomainsList,
	})
	domainsCreateCmd := &cobra.Command{
		Use:   "create [id]",
		Short: "Create a domain",
		Args:  cobra.ExactArgs(1),
		RunE:  runDomainsCreate,
	}
	domainsCreateCmd.Flags().String("name", "", "Display name (defaults to the id)")
	domainsCreateCmd.Flags().String("description", "", "Domain description")
	domainsCreateCmd.Flags().Bool("readonly", false, "Create the domain read-only")
	domainsCmd.AddCommand(domainsCreateCmd)
	domainsCmd.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a domain and all its symbols",
		Args:  cobra.ExactArgs(1),
		RunE:  runDomainsDelete,
	})
	rootCmd.AddCommand(domainsCmd)

	// Search command
	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Hybrid search over the symbol graph",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSearch,
	}
	searchCmd.Flags().StringSlice("domains", nil, "Restrict to these domains")
	searchCmd.Flags().StringToString("metadata", nil, "Field filters, e.g. --metadata symbol_tag=core")
	searchCmd.Flags().String("since", "", "Only symbols created at or after this RFC3339 time")
	searchCmd.Flags().Int("limit", 0, "Maximum results (0 = configured default)")
	rootCmd.AddCommand(searchCmd)

	// Reindex command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index and time buckets from stored domains",
		RunE:  runReindex,
	})

	// Stats command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show symbol counts per accessible domain",
		RunE:  runStats,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore builds the full stack from configuration: KV backend, vector
// backend, symbol store. The returned closer shuts down both backends.
func openStore(cmd *cobra.Command) (*symbol.Store, func(), error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.FindConfigFile()
	}

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var kvStore kv.Store
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		kvStore = kv.NewMemoryStore()
	case config.StorageBadger:
		kvStore, err = kv.NewBadgerStore(cfg.Storage.DataDir)
	case config.StorageRedis:
		kvStore, err = kv.NewRedisStore(context.Background(), kv.RedisOptions{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
	default:
		err = fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	var index vector.Index
	switch cfg.Vector.Backend {
	case config.VectorMemory:
		index = vector.NewMemoryIndex(vector.NewHashEmbedder(cfg.Vector.EmbedDims))
	case config.VectorWeaviate:
		index, err = vector.NewWeaviateIndex(context.Background(), vector.WeaviateOptions{
			URL:       cfg.Vector.URL,
			ClassName: cfg.Vector.Class,
		})
	default:
		err = fmt.Errorf("unknown vector backend: %s", cfg.Vector.Backend)
	}
	if err != nil {
		kvStore.Close()
		return nil, nil, fmt.Errorf("open vector index: %w", err)
	}

	store := symbol.New(kvStore, index)
	closer := func() {
		store.Flush()
		index.Close()
		kvStore.Close()
	}
	return store, closer, nil
}

func callerOpts(cmd *cobra.Command) (string, bool) {
	caller, _ := cmd.Flags().GetString("caller")
	admin, _ := cmd.Flags().GetBool("admin")
	return caller, admin
}

func runDomainsList(cmd *cobra.Command, args []string) error {
	store, closer, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closer()

	caller, _ := callerOpts(cmd)
	domains, err := store.ListDomains(cmd.Context(), symbol.ReadOptions{Caller: caller})
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		fmt.Println("No domains.")
		return nil
	}
	for _, d := range domains {
		flags := ""
		if !d.Enabled {
			flags += " [disabled]"
		}
		if d.ReadOnly {
			flags += " [readonly]"
		}
		fmt.Printf("%-24s %4d symbols%s\n", d.ID, len(d.Symbols), flags)
	}
	return nil
}

func runDomainsCreate(cmd *cobra.Command, args []string) error {
	store, closer, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closer()

	name, _ := cmd.Flags().GetString("name")
	description, _ := cmd.Flags().GetString("description")
	readonly, _ := cmd.Flags().GetBool("readonly")
	if name == "" {
		name = args[0]
	}

	caller, admin := callerOpts(cmd)
	d, err := store.CreateDomain(cmd.Context(), symbol.Domain{
		ID:          args[0],
		Name:        name,
		Description: description,
		ReadOnly:    readonly,
	}, symbol.WriteOptions{Caller: caller, Admin: admin})
	if err != nil {
		return err
	}
	fmt.Printf("Domain %q ready (%d symbols)\n", d.ID, len(d.Symbols))
	return nil
}

func runDomainsDelete(cmd *cobra.Command, args []string) error {
	store, closer, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closer()

	caller, admin := callerOpts(cmd)
	deleted, err := store.DeleteDomain(cmd.Context(), args[0], symbol.WriteOptions{Caller: caller, Admin: admin})
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Printf("Domain %q not found\n", args[0])
		return nil
	}
	fmt.Printf("Domain %q deleted\n", args[0])
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	store, closer, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closer()

	caller, _ := callerOpts(cmd)
	opts := symbol.SearchOptions{Caller: caller}
	if len(args) == 1 {
		opts.Query = args[0]
	}
	opts.Domains, _ = cmd.Flags().GetStringSlice("domains")
	opts.Limit, _ = cmd.Flags().GetInt("limit")

	if md, _ := cmd.Flags().GetStringToString("metadata"); len(md) > 0 {
		opts.Metadata = make(map[string]interface{}, len(md))
		for k, v := range md {
			// Comma-separated values become any-of filters.
			if strings.Contains(v, ",") {
				opts.Metadata[k] = strings.Split(v, ",")
			} else {
				opts.Metadata[k] = v
			}
		}
	}
	if since, _ := cmd.Flags().GetString("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		opts.Since = &t
	}

	results, err := store.Search(cmd.Context(), opts)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	store, closer, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closer()

	caller, _ := callerOpts(cmd)
	start := time.Now()
	count, err := store.Reindex(cmd.Context(), symbol.ReadOptions{Caller: caller})
	if err != nil {
		return err
	}
	fmt.Printf("Reindexed %d symbols in %s\n", count, time.Since(start).Round(time.Millisecond))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	store, closer, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closer()

	caller, _ := callerOpts(cmd)
	domains, err := store.ListDomains(cmd.Context(), symbol.ReadOptions{Caller: caller})
	if err != nil {
		return err
	}

	total := 0
	kinds := map[symbol.Kind]int{}
	for _, d := range domains {
		total += len(d.Symbols)
		for _, s := range d.Symbols {
			kinds[s.Kind]++
		}
	}
	fmt.Printf("Domains: %d\nSymbols: %d\n", len(domains), total)
	for _, k := range []symbol.Kind{symbol.KindPattern, symbol.KindPersona, symbol.KindLattice, symbol.KindData} {
		if kinds[k] > 0 {
			fmt.Printf("  %-8s %d\n", k, kinds[k])
		}
	}
	return nil
}
