package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/efebarandurmaz/llmfactory/internal/config"
	"github.com/efebarandurmaz/llmfactory/internal/llm"
	"github.com/efebarandurmaz/llmfactory/internal/llm/providers"
	"github.com/efebarandurmaz/llmfactory/internal/logging"
	"github.com/efebarandurmaz/llmfactory/internal/observability"
	temporalmod "github.com/efebarandurmaz/llmfactory/internal/temporal"
	"github.com/efebarandurmaz/llmfactory/internal/vector"
	"github.com/efebarandurmaz/llmfactory/internal/vector/backend"
)

// Reply is the structured answer requested by the complete command.
type Reply struct {
	Answer string `json:"answer" jsonschema:"the answer to the user's request"`
}

// runtime holds what every command needs after startup.
type runtime struct {
	cfg      *config.Config
	settings *config.Settings
	logger   *zap.Logger
	metrics  *observability.Metrics
	tracer   *observability.TracerProvider
}

func main() {
	var (
		configPath string
		envFile    string
		rt         runtime
	)

	rootCmd := &cobra.Command{
		Use:           "llmfactory",
		Short:         "Structured LLM completions and embeddings across providers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.init(cmd.Context(), configPath, envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file with provider settings")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List registered providers and their default models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listProviders(rt.settings)
		},
	}

	var (
		provider    string
		model       string
		system      string
		temperature float64
		maxTokens   int
		maxRetries  int
	)
	completeCmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Request a structured completion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &llm.RequestOptions{}
			if model != "" {
				opts.Model = &model
			}
			if cmd.Flags().Changed("temperature") {
				opts.Temperature = &temperature
			}
			if cmd.Flags().Changed("max-tokens") {
				opts.MaxTokens = &maxTokens
			}
			if cmd.Flags().Changed("max-retries") {
				opts.MaxRetries = &maxRetries
			}
			return runComplete(cmd.Context(), &rt, pick(provider, rt.cfg.Completion.Provider), system, strings.Join(args, " "), opts)
		},
	}
	completeCmd.Flags().StringVar(&provider, "provider", "", "Completion provider (default from config)")
	completeCmd.Flags().StringVar(&model, "model", "", "Model override")
	completeCmd.Flags().StringVar(&system, "system", "", "System prompt")
	completeCmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature override")
	completeCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Max tokens override")
	completeCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Validation attempt budget override")

	var (
		embedProvider string
		embedModel    string
		jsonOut       bool
	)
	embedCmd := &cobra.Command{
		Use:   "embed [text]",
		Short: "Embed text and print the vector",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := rt.embeddingFactory(pick(embedProvider, rt.cfg.Embedding.Provider))
			if err != nil {
				return err
			}
			vec, err := f.CreateEmbedding(cmd.Context(), strings.Join(args, " "), embeddingOptions(embedModel))
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(vec)
			}
			fmt.Printf("dimensions: %d\n", len(vec))
			fmt.Printf("head:       %v\n", vec[:min(5, len(vec))])
			return nil
		},
	}
	embedCmd.Flags().StringVar(&embedProvider, "provider", "", "Embedding provider (default from config)")
	embedCmd.Flags().StringVar(&embedModel, "model", "", "Embedding model override")
	embedCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full vector as JSON")

	var (
		file        string
		viaTemporal bool
	)
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Embed every non-empty line of a file into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := readLines(file)
			if err != nil {
				return err
			}
			if viaTemporal {
				return indexViaTemporal(cmd.Context(), &rt, texts)
			}
			return runIndex(cmd.Context(), &rt, pick(embedProvider, rt.cfg.Embedding.Provider), embedModel, texts)
		},
	}
	indexCmd.Flags().StringVar(&file, "file", "", "Input file, one text per line")
	indexCmd.Flags().StringVar(&embedProvider, "provider", "", "Embedding provider (default from config)")
	indexCmd.Flags().StringVar(&embedModel, "model", "", "Embedding model override")
	indexCmd.Flags().BoolVar(&viaTemporal, "temporal", false, "Run as an IndexWorkflow on the configured task queue")
	_ = indexCmd.MarkFlagRequired("file")

	var topK int
	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find the stored texts most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), &rt, pick(embedProvider, rt.cfg.Embedding.Provider), embedModel, strings.Join(args, " "), topK)
		},
	}
	searchCmd.Flags().IntVar(&topK, "top-k", 5, "Number of results")
	searchCmd.Flags().StringVar(&embedProvider, "provider", "", "Embedding provider (default from config)")
	searchCmd.Flags().StringVar(&embedModel, "model", "", "Embedding model override")

	rootCmd.AddCommand(providersCmd, completeCmd, embedCmd, indexCmd, searchCmd)

	err := rootCmd.ExecuteContext(context.Background())
	if cerr := rt.close(); cerr != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (rt *runtime) init(ctx context.Context, configPath, envFile string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)

	tcfg := observability.DefaultTracingConfig()
	tcfg.ServiceName = cfg.Tracing.ServiceName
	tcfg.Insecure = cfg.Tracing.Insecure
	if cfg.Tracing.Enabled {
		tcfg.OTLPEndpoint = cfg.Tracing.Endpoint
	}
	tp, err := observability.InitTracing(ctx, tcfg)
	if err != nil {
		return err
	}

	*rt = runtime{cfg: cfg, settings: settings, logger: logger, metrics: observability.NewMetrics(), tracer: tp}
	return nil
}

// close flushes the tracer and logger. It is a no-op when init never ran,
// and it runs whether or not the command failed.
func (rt *runtime) close() error {
	if rt.tracer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := rt.tracer.Shutdown(ctx)
	_ = rt.logger.Sync()
	return err
}

func (rt *runtime) completionFactory(provider string) (*llm.CompletionFactory, error) {
	return llm.NewCompletionFactory(rt.settings, providers.Completion(), provider,
		llm.WithLogger(rt.logger), llm.WithMetrics(rt.metrics))
}

func (rt *runtime) embeddingFactory(provider string) (*llm.EmbeddingFactory, error) {
	return llm.NewEmbeddingFactory(rt.settings, providers.Embedding(), provider,
		llm.WithLogger(rt.logger), llm.WithMetrics(rt.metrics))
}

func (rt *runtime) indexer(ctx context.Context, provider, model string) (*vector.Indexer, backend.Store, error) {
	f, err := rt.embeddingFactory(provider)
	if err != nil {
		return nil, nil, err
	}
	store, err := backend.Open(ctx, rt.cfg.Vector, rt.settings.Database.ServiceURL)
	if err != nil {
		return nil, nil, err
	}
	ix := vector.NewIndexer(f, store,
		vector.WithEmbeddingOptions(embeddingOptions(model)),
		vector.WithLogger(rt.logger),
		vector.WithMetrics(rt.metrics),
	)
	return ix, store, nil
}

func pick(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}

func embeddingOptions(model string) *llm.EmbeddingOptions {
	if model == "" {
		return nil
	}
	return &llm.EmbeddingOptions{Model: &model}
}

func listProviders(settings *config.Settings) error {
	fmt.Println("Completion providers:")
	for _, name := range providers.Completion().Names() {
		ps, ok := settings.Completion(name)
		if !ok {
			continue
		}
		fmt.Printf("  %-10s %s\n", name, ps.Defaults().Model)
	}
	fmt.Println()
	fmt.Println("Embedding providers:")
	for _, name := range providers.Embedding().Names() {
		ps, ok := settings.Embedding(name)
		if !ok {
			continue
		}
		fmt.Printf("  %-10s %s\n", name, ps.Defaults().Model)
	}
	fmt.Println()
	fmt.Println("Select with LLMFACTORY_COMPLETION_PROVIDER / LLMFACTORY_EMBEDDING_PROVIDER,")
	fmt.Println("override models with OPENAI_MODEL, OLLAMA_MODEL, ANTHROPIC_MODEL, BEDROCK_MODEL, ...")
	return nil
}

func runComplete(ctx context.Context, rt *runtime, provider, system, prompt string, opts *llm.RequestOptions) error {
	f, err := rt.completionFactory(provider)
	if err != nil {
		return err
	}
	var messages []llm.Message
	if system != "" {
		messages = append(messages, llm.SystemMessage(system))
	}
	messages = append(messages, llm.UserMessage(prompt))

	reply, err := llm.CreateCompletion[Reply](ctx, f, messages, opts)
	if err != nil {
		return err
	}
	fmt.Println(reply.Answer)
	return nil
}

func runIndex(ctx context.Context, rt *runtime, provider, model string, texts []string) error {
	ix, store, err := rt.indexer(ctx, provider, model)
	if err != nil {
		return err
	}
	defer store.Close()

	ids, err := ix.IndexTexts(ctx, texts, nil)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d texts into %s\n", len(ids), store.Backend())
	return nil
}

func indexViaTemporal(ctx context.Context, rt *runtime, texts []string) error {
	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  rt.cfg.Temporal.Host,
		Namespace: rt.cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	run, err := c.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		TaskQueue: rt.cfg.Temporal.TaskQueue,
	}, temporalmod.IndexWorkflow, temporalmod.IndexInput{Texts: texts})
	if err != nil {
		return fmt.Errorf("starting workflow: %w", err)
	}
	rt.logger.Info("index workflow started", zap.String("workflow_id", run.GetID()), zap.String("run_id", run.GetRunID()))

	var out temporalmod.IndexOutput
	if err := run.Get(ctx, &out); err != nil {
		return err
	}
	fmt.Printf("Indexed %d texts into %s\n", len(out.IDs), out.Backend)
	return nil
}

func runSearch(ctx context.Context, rt *runtime, provider, model, query string, topK int) error {
	ix, store, err := rt.indexer(ctx, provider, model)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := ix.Search(ctx, query, topK)
	if err != nil {
		return err
	}
	for i, r := range results {
		fmt.Printf("%2d. %.4f  %s\n", i+1, r.Score, r.Content)
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}
