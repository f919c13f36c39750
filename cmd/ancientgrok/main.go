// ancientgrok is the cuneiform research chat CLI: configured assistants with
// CDLI, translation, filesystem, notification, and MCP tools, a terminal UI
// by default, and a plain stdin/stdout loop with -plain.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/agent"
	"github.com/samshapley/ancientgrok/cdli"
	"github.com/samshapley/ancientgrok/config"
	"github.com/samshapley/ancientgrok/conversations"
	"github.com/samshapley/ancientgrok/llm"
	aglogger "github.com/samshapley/ancientgrok/logger"
	"github.com/samshapley/ancientgrok/mcp"
	"github.com/samshapley/ancientgrok/migrations"
	"github.com/samshapley/ancientgrok/tools/schemas"
	"github.com/samshapley/ancientgrok/translate"
	"github.com/samshapley/ancientgrok/ui"
	"github.com/samshapley/ancientgrok/ui/tui"
)

const defaultDBPath = "ancientgrok.db"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command-line flags
	var (
		configPath  = flag.String("config", config.GetConfigPath(), "Path to config file")
		dbPath      = flag.String("db", defaultDBPath, "Path to SQLite database file")
		logFile     = flag.String("logfile", "", "Path to log file. If not set, logs to stdout/stderr")
		pretty      = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		plain       = flag.Bool("plain", false, "Plain stdin/stdout chat loop instead of the terminal UI")
		assistantID = flag.String("assistant", "", "Assistant to chat with in plain mode (default: first available)")
	)
	flag.Parse()

	// Validate that --logfile and --pretty are mutually exclusive
	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	// The TUI owns the terminal, so its logs default to a file rather than
	// stdout. Plain mode logs to stdout like the other binaries.
	if *logFile == "" && !*pretty && !*plain {
		*logFile = "ancientgrok.log"
	}

	logger, err := aglogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info().
		Str("config", *configPath).
		Str("db", *dbPath).
		Bool("plain", *plain).
		Msg("ancientgrok starting")

	appConfig, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info().Int("assistants", len(appConfig.Assistants)).Msg("Loaded configuration")

	// ---------------------------
	// 1. Open SQLite + Conversation Store
	// ---------------------------

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	if err := migrations.RunMigrations(db, "./migrations", logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	conversationStore := conversations.NewStore(db)

	// ---------------------------
	// 2. Create Team + Shared Tools
	// ---------------------------

	logger.Info().Msg("Creating team and registering tools")
	team := agent.NewTeam(logger, agent.WithMessagePersister(conversationStore))

	// Workspace for filesystem tools and CDLI downloads (default: cwd).
	workspacePath := appConfig.Workspace
	if workspacePath == "" {
		workspacePath, err = os.Getwd()
		if err != nil {
			workspacePath = "."
			logger.Warn().Err(err).Msg("Failed to get current directory, using '.' as workspace")
		}
	}

	providerRegistry := llm.NewProviderRegistry(config.ProviderConfig(appConfig), config.EnabledProviders(appConfig))

	translator, err := buildTranslator(appConfig, providerRegistry, logger)
	if err != nil {
		// Chat still works without the translation tool; assistants just
		// lose translate_text.
		logger.Warn().Err(err).Msg("Translation tool disabled")
	}
	registerAllTools(logger, team, appConfig, workspacePath, translator)

	if err := team.LoadTeamConfig(appConfig); err != nil {
		return fmt.Errorf("failed to load team config: %w", err)
	}

	// Register MCP servers and their tools
	logger.Info().
		Int("count", len(appConfig.MCPServers)).
		Msg("Starting MCP server registration")
	registerMCPServers(logger, team, appConfig.MCPServers)
	defer closeMCPClients(logger, team)

	// ---------------------------
	// 3. Create Chat Service
	// ---------------------------

	chatTimeout := appConfig.ChatTimeout
	if envTimeout := os.Getenv("ANCIENTGROK_CHAT_TIMEOUT"); envTimeout != "" {
		if parsed, err := strconv.Atoi(envTimeout); err == nil && parsed > 0 {
			chatTimeout = parsed
		}
	}
	chatService := ui.NewChatService(logger, team, db, conversationStore, chatTimeout, appConfig)

	// ---------------------------
	// 4. Initialize Assistant Runners
	// ---------------------------

	if err := team.InitializeAssistants(providerRegistry); err != nil {
		return fmt.Errorf("failed to initialize assistants: %w", err)
	}
	logger.Info().Msg("Assistants initialized successfully")

	// ---------------------------
	// 5. Start UI
	// ---------------------------

	if *plain {
		return runPlain(logger, chatService, *assistantID)
	}

	// Get theme: env var takes precedence, then config file, then default
	theme := os.Getenv("ANCIENTGROK_THEME")
	if theme == "" {
		theme = appConfig.Theme
	}
	if theme == "" {
		theme = "clay"
	}

	logger.Info().Str("theme", theme).Msg("Starting terminal UI")
	app := tui.NewAppWithTheme(logger, *configPath, chatService, theme)
	if err := app.Run(); err != nil {
		return fmt.Errorf("error running application: %w", err)
	}

	logger.Info().Msg("ancientgrok shutdown complete")
	return nil
}

// buildTranslator backs the translate_text tool. The model resolves the same
// way assistants without preferences do: the first enabled provider with its
// default model.
func buildTranslator(appConfig *config.Config, registry *llm.ProviderRegistry, logger zerolog.Logger) (translate.Translator, error) {
	key, err := registry.ResolveAssistantLLMConfig("translate_text", llm.AssistantLLMConfig{})
	if err != nil {
		return nil, err
	}

	var client llm.Client
	switch key.Provider {
	case llm.ProviderAnthropic:
		client, err = config.NewAnthropicClient(appConfig, logger)
	case llm.ProviderGemini:
		client, err = config.NewGeminiClient(appConfig, logger)
	case llm.ProviderOllama:
		client, err = config.NewOllamaClient(appConfig)
	case llm.ProviderOpenAI:
		client, err = config.NewOpenAIClient(appConfig)
	case llm.ProviderXAI:
		client, err = config.NewXAIClient(appConfig)
	default:
		return nil, fmt.Errorf("unknown provider %q", key.Provider)
	}
	if err != nil {
		return nil, err
	}

	opts := translate.ProviderOptions{Model: key.Model}
	logger.Info().Str("provider", key.Provider).Str("model", key.Model).Msg("Translation tool ready")
	return translate.NewProvider(client, nil, opts, logger), nil
}

// registerAllTools registers the native tool handlers and their schemas.
func registerAllTools(logger zerolog.Logger, team *agent.Team, appConfig *config.Config, workspacePath string, translator translate.Translator) {
	cdliClient := cdli.NewClientWithBaseURL(appConfig.CDLI.BaseURL, logger)
	team.ToolRegistry.RegisterCDLITools(cdliClient, workspacePath)
	team.ToolRegistry.RegisterFilesystemTools(workspacePath)
	team.ToolRegistry.RegisterNotificationTools()
	if translator != nil {
		team.ToolRegistry.RegisterTranslationTools(translator)
	}

	allSchemas := schemas.All()
	if translator == nil {
		// No handler, so don't advertise the tool to models.
		delete(allSchemas, translate.ToolName)
	}
	for name, schema := range allSchemas {
		team.ToolProvider.RegisterSchema(name, agent.ToolSchema{
			Description: schema.Description,
			Schema:      schema.Schema,
		})
	}
	logger.Info().Int("count", len(allSchemas)).Msg("Registered tool schemas")
}

// registerMCPServers discovers and registers tools from configured MCP servers.
func registerMCPServers(logger zerolog.Logger, team *agent.Team, servers map[string]*config.MCPServerConfig) {
	if len(servers) == 0 {
		logger.Info().Msg("No MCP servers configured")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	adapter := mcp.NewNameAdapter()

	for serverName, serverConfig := range servers {
		if serverConfig == nil {
			logger.Warn().Str("name", serverName).Msg("MCP server has nil config, skipping")
			continue
		}

		var mcpClient mcp.MCPClient
		var err error

		switch {
		case serverConfig.Command != "":
			mcpClient, err = mcp.NewStdioMCPClient(logger, serverConfig.Command, serverConfig.Args, serverConfig.Env)
			if err != nil {
				logger.Error().Str("name", serverName).Err(err).Msg("Failed to create STDIO MCP client")
				continue
			}
		case serverConfig.URL != "":
			mcpClient, err = mcp.NewHttpMCPClient(logger, serverConfig.URL)
			if err != nil {
				logger.Error().Str("name", serverName).Err(err).Msg("Failed to create HTTP MCP client")
				continue
			}
		default:
			logger.Warn().Str("name", serverName).Msg("MCP server has neither command nor url, skipping")
			continue
		}

		if err := mcpClient.Start(ctx); err != nil {
			logger.Error().Str("name", serverName).Err(err).Msg("Failed to start MCP client")
			_ = mcpClient.Close()
			continue
		}

		mcpTools, err := mcpClient.ListTools(ctx)
		if err != nil {
			logger.Error().Str("name", serverName).Err(err).Msg("Failed to list tools from MCP server")
			_ = mcpClient.Close()
			continue
		}

		logger.Info().Int("count", len(mcpTools)).Str("name", serverName).Msg("Discovered tools from MCP server")

		for _, tool := range mcpTools {
			originalName := tool.Name
			safeName := adapter.GetSafeName(originalName)

			team.ToolRegistry.RegisterMCPTool(safeName, originalName, mcpClient)

			var schema map[string]any
			if tool.InputSchema != nil {
				schema = tool.InputSchema
			} else {
				schema = map[string]any{
					"type":       "object",
					"properties": make(map[string]any),
				}
			}

			team.ToolProvider.RegisterSchemaWithServer(safeName, agent.ToolSchema{
				Description: tool.Description,
				Schema:      schema,
			}, serverName)
		}

		team.MCPServers[serverName] = serverConfig
		team.MCPClients[serverName] = mcpClient
		logger.Info().Str("name", serverName).Msg("Completed registration for MCP server")
	}
}

func closeMCPClients(logger zerolog.Logger, team *agent.Team) {
	for name, client := range team.GetMCPClients() {
		if err := client.Close(); err != nil {
			logger.Warn().Str("name", name).Err(err).Msg("Failed to close MCP client")
		}
	}
}

// runPlain is the stdin/stdout chat loop: one assistant, streamed responses,
// and the same /reset, /compress, and /quit commands the TUI offers.
func runPlain(logger zerolog.Logger, chatService ui.ChatService, assistantID string) error {
	assistants := chatService.ListAssistants()
	if len(assistants) == 0 {
		return fmt.Errorf("no assistants available; check provider credentials in the config file")
	}
	sort.Slice(assistants, func(i, j int) bool { return assistants[i].ID < assistants[j].ID })

	var selected *ui.AssistantInfo
	if assistantID == "" {
		selected = &assistants[0]
	} else {
		for i := range assistants {
			if assistants[i].ID == assistantID {
				selected = &assistants[i]
				break
			}
		}
		if selected == nil {
			ids := make([]string, len(assistants))
			for i, a := range assistants {
				ids[i] = a.ID
			}
			return fmt.Errorf("unknown assistant %q (available: %s)", assistantID, strings.Join(ids, ", "))
		}
	}

	ctx := context.Background()
	threadID, err := chatService.GetOrCreateThreadID(ctx, selected.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve thread: %w", err)
	}

	history, err := chatService.LoadThread(ctx, selected.ID, threadID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load conversation history, starting fresh")
		history = nil
	}

	fmt.Printf("%s (%s/%s), thread %s. /reset, /compress, /quit.\n",
		selected.Name, selected.Provider, selected.Model, threadID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := chatService.ResetContext(ctx, selected.ID, threadID); err != nil {
				fmt.Printf("reset failed: %v\n", err)
				continue
			}
			history = nil
			fmt.Println("Context reset.")
			continue
		case "/compress":
			if err := chatService.CompressContext(ctx, selected.ID, threadID); err != nil {
				fmt.Printf("compress failed: %v\n", err)
				continue
			}
			history, err = chatService.LoadThread(ctx, selected.ID, threadID)
			if err != nil {
				history = nil
			}
			fmt.Println("Context compressed.")
			continue
		}

		turnCtx, cancel := context.WithTimeout(ctx, chatService.GetChatTimeout())
		_ = chatService.SaveMessage(turnCtx, selected.ID, threadID, "user", line)

		response, err := chatService.SendMessageStream(turnCtx, selected.ID, threadID, line, history,
			func(text string) error {
				fmt.Print(text)
				return nil
			})
		if err != nil {
			cancel()
			fmt.Printf("\nerror: %v\n", err)
			continue
		}
		fmt.Println()

		_ = chatService.SaveMessage(turnCtx, selected.ID, threadID, "assistant", response)
		history = append(history,
			llm.NewTextMessage(llm.RoleUser, line),
			llm.NewTextMessage(llm.RoleAssistant, response),
		)
		cancel()
	}
}
