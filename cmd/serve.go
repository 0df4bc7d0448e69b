package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	httpadapter "inkwell/internal/adapters/http"
	"inkwell/internal/adapters/llm"
	"inkwell/internal/adapters/retrieval"
	firestorestore "inkwell/internal/adapters/storage/firestore"
	memstore "inkwell/internal/adapters/storage/memory"
	sqlitestore "inkwell/internal/adapters/storage/sqlite"
	"inkwell/internal/app/assembly"
	"inkwell/internal/app/collab"
	"inkwell/internal/app/dispatch"
	"inkwell/internal/app/setting"
	"inkwell/internal/config"
	"inkwell/internal/domain"
	"inkwell/internal/events"
	"inkwell/internal/observability"
	"inkwell/internal/registry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Inkwell HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := observability.Logger()

	// Completion backend.
	var (
		completer    domain.Completer
		vertexClient *llm.VertexClient
	)
	switch cfg.LLMProvider {
	case config.ProviderVertex:
		vertexClient, err = llm.NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.VertexModel)
		if err != nil {
			return fmt.Errorf("initializing vertex client: %w", err)
		}
		completer = vertexClient
		log.Info("using vertex completion backend", "model", cfg.VertexModel)
	case config.ProviderAnthropic:
		completer, err = llm.NewAnthropicClient(cfg.AnthropicModel, cfg.AnthropicAPIKeyEnv)
		if err != nil {
			return fmt.Errorf("initializing anthropic client: %w", err)
		}
		log.Info("using anthropic completion backend", "model", cfg.AnthropicModel)
	default:
		completer = llm.NewMockCompleter()
		log.Info("using mock completion backend")
	}

	// Session storage.
	var store domain.SessionStore
	switch cfg.StorageBackend {
	case "firestore":
		store, err = firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return fmt.Errorf("initializing firestore store: %w", err)
		}
		log.Info("using firestore session store", "project", cfg.GCPProjectID)
	case "sqlite":
		sqlStore, err := sqlitestore.NewStore(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("initializing sqlite store: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
		log.Info("using sqlite session store", "path", cfg.SQLitePath)
	default:
		store = memstore.NewSessionStore()
		log.Info("using in-memory session store")
	}

	// Context assembly, with optional semantic retrieval.
	assembler := assembly.New()
	if cfg.RetrievalEnabled {
		var embedder domain.Embedder
		if vertexClient != nil {
			embedder = retrieval.NewVertexEmbedder(vertexClient.GenAI(), "")
		} else {
			embedder = retrieval.NewHashEmbedder()
		}
		assembler.WithRetrieval(retrieval.NewVectorStore(), embedder, cfg.RetrievalTopK)
		log.Info("retrieval enabled", "top_k", cfg.RetrievalTopK)
	}

	reg := registry.Default()
	bus := events.NewBus()

	collabSvc := collab.NewService(store, reg, assembler, dispatch.New(completer), bus).
		WithWindow(cfg.ContextWindow)
	settingSvc := setting.NewService(collabSvc, reg, memstore.NewSettingStore())

	handler := httpadapter.NewServer(collabSvc, settingSvc, reg)

	addr := ":" + cfg.Port
	log.Info("inkwell api listening", "addr", addr)
	return http.ListenAndServe(addr, handler)
}
