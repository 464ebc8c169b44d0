// Package main provides the CLI entry point for the brain query engine.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/yeehaa123/personal-brain-sub002/internal/config"
	"github.com/yeehaa123/personal-brain-sub002/internal/data"
	"github.com/yeehaa123/personal-brain-sub002/internal/external"
	"github.com/yeehaa123/personal-brain-sub002/internal/llm"
	"github.com/yeehaa123/personal-brain-sub002/internal/logging"
	"github.com/yeehaa123/personal-brain-sub002/internal/memory"
	"github.com/yeehaa123/personal-brain-sub002/internal/notes"
	"github.com/yeehaa123/personal-brain-sub002/internal/orchestrator"
	"github.com/yeehaa123/personal-brain-sub002/internal/profile"
	"github.com/yeehaa123/personal-brain-sub002/internal/relevance"
	"github.com/yeehaa123/personal-brain-sub002/pkg/types"
)

var (
	// Version information (set at build time)
	version = "dev"

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

// cliRoomID is the room every plain CLI query lands in.
const cliRoomID = "cli:default"

// engine bundles everything a command needs after wiring.
type engine struct {
	cfg      *config.Config
	store    *data.Store
	orch     *orchestrator.Orchestrator
	notes    *notes.Store
	embedder relevance.Embedder
}

func (e *engine) close() {
	if err := e.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: close store: %v\n", err)
	}
}

// buildEngine wires config -> store -> collaborators -> orchestrator.
func buildEngine(configPath string) (*engine, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := logging.Setup(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, err
	}

	store, err := data.NewDB(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	model, err := llm.NewClient(llm.Config{
		URL:            cfg.LLM.Endpoint,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	var embedder relevance.Embedder
	if cfg.LLM.EmbeddingModel != "" {
		embedder = model
	}

	var extSearch orchestrator.ExternalSearch
	if cfg.External.Enabled {
		client, err := external.NewClient(cfg.External.Endpoint)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("create external search client: %w", err)
		}
		extSearch = client
	}

	mem := memory.NewManager(store, model, memory.Config{
		MaxActiveTurns:   cfg.Memory.MaxActiveTurns,
		SummaryTurnCount: cfg.Memory.SummaryTurnCount,
		MaxArchivedTurns: cfg.Memory.MaxArchivedTurns,
	})

	noteStore := notes.NewStore(store.DB(), embedder)

	orch := orchestrator.New(
		store,
		mem,
		relevance.NewScorer(embedder),
		noteStore,
		profile.NewLoaderForDataDir(cfg.Data.Dir, embedder),
		extSearch,
		model,
		orchestrator.Config{
			NoteLimit:      cfg.Query.NoteLimit,
			RelatedLimit:   cfg.Query.RelatedLimit,
			ExternalLimit:  cfg.External.Limit,
			HistoryTokens:  cfg.Query.HistoryTokens,
			AnswerTokens:   cfg.Query.AnswerTokens,
			RoomPrecedence: cfg.RoomPrecedence(),
		},
	)

	return &engine{cfg: cfg, store: store, orch: orch, notes: noteStore, embedder: embedder}, nil
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "brain",
		Short: "Personal knowledge assistant query engine",
		Long: titleStyle.Render("Brain") + `

A personal knowledge retrieval assistant that answers questions from your
notes, profile, and conversation history using a local LLM.

` + dimStyle.Render("Use 'brain [command] --help' for more information."),
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.brain/config.yaml)")

	// query command - ask a question
	var room string
	queryCmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question against your knowledge base",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := ""
			if len(args) > 0 {
				question = args[0]
			}

			eng, err := buildEngine(configPath)
			if err != nil {
				return err
			}
			defer eng.close()

			ctx := context.Background()

			roomID := room
			if roomID == "" {
				roomID = cliRoomID
			}
			convID, err := eng.orch.GetOrCreateConversation(ctx, types.InterfaceCLI, roomID)
			if err != nil {
				return fmt.Errorf("resolve conversation: %w", err)
			}

			resp, err := eng.orch.ProcessQueryForConversation(ctx, convID, question)
			if err != nil {
				return fmt.Errorf("process query: %w", err)
			}

			if _, err := eng.orch.AddTurn(ctx, convID, &types.Turn{
				Query:    question,
				Response: resp.Answer,
			}); err != nil {
				return fmt.Errorf("record turn: %w", err)
			}

			fmt.Println(resp.Answer)

			if len(resp.Citations) > 0 {
				fmt.Println()
				fmt.Println(dimStyle.Render("Sources:"))
				for i, c := range resp.Citations {
					fmt.Printf("  [%d] %s\n", i+1, c.Title)
				}
			}
			if len(resp.ExternalSources) > 0 {
				fmt.Println()
				fmt.Println(dimStyle.Render("External sources:"))
				for _, c := range resp.ExternalSources {
					fmt.Printf("  - %s (%s)\n", c.Title, c.Source)
				}
			}
			if len(resp.RelatedNotes) > 0 {
				fmt.Println()
				fmt.Println(dimStyle.Render("Related notes:"))
				for _, n := range resp.RelatedNotes {
					fmt.Printf("  - %s\n", n.Title)
				}
			}

			return nil
		},
	}
	queryCmd.Flags().StringVar(&room, "room", "", "room ID for conversation continuity (default cli:default)")

	// conversations command - list stored conversations
	var (
		listInterface string
		listContains  string
		listLimit     int
	)
	conversationsCmd := &cobra.Command{
		Use:   "conversations",
		Short: "List stored conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(configPath)
			if err != nil {
				return err
			}
			defer eng.close()

			criteria := data.FindCriteria{
				Contains: listContains,
				Limit:    listLimit,
			}
			if listInterface != "" {
				criteria.InterfaceType = types.InterfaceType(listInterface)
			}

			infos, err := eng.orch.FindConversations(context.Background(), criteria)
			if err != nil {
				return fmt.Errorf("find conversations: %w", err)
			}

			if len(infos) == 0 {
				fmt.Println(dimStyle.Render("No conversations found."))
				return nil
			}

			for _, info := range infos {
				fmt.Printf("%s  %s  %s  %d turns  updated %s\n",
					info.ID,
					info.InterfaceType,
					info.RoomID,
					info.TurnCount,
					info.UpdatedAt.Format("2006-01-02 15:04"),
				)
			}

			return nil
		},
	}
	conversationsCmd.Flags().StringVar(&listInterface, "interface", "", "filter by interface type (cli, matrix)")
	conversationsCmd.Flags().StringVar(&listContains, "contains", "", "filter by substring in turn text")
	conversationsCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum conversations to list")

	// history command - show tiered history for a conversation
	historyCmd := &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "Show tiered history for a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(configPath)
			if err != nil {
				return err
			}
			defer eng.close()

			history, err := eng.orch.GetConversationHistory(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("get history: %w", err)
			}

			if len(history.Summaries) > 0 {
				fmt.Println(titleStyle.Render("Summaries"))
				for _, s := range history.Summaries {
					fmt.Printf("  %s (%d turns): %s\n", s.ID, s.TurnCount, s.Content)
				}
				fmt.Println()
			}

			fmt.Println(titleStyle.Render("Active turns"))
			for _, t := range history.ActiveTurns {
				fmt.Printf("  User: %s\n  Assistant: %s\n\n", t.Query, t.Response)
			}

			return nil
		},
	}

	// summarize command - force summarization of a conversation
	summarizeCmd := &cobra.Command{
		Use:   "summarize [conversation-id]",
		Short: "Force summarization of a conversation's oldest active turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(configPath)
			if err != nil {
				return err
			}
			defer eng.close()

			if eng.orch.ForceSummarize(context.Background(), args[0]) {
				fmt.Println(successStyle.Render("✓ Summary created."))
			} else {
				fmt.Println(dimStyle.Render("Nothing to summarize."))
			}

			return nil
		},
	}

	// note command - manage notes
	noteCmd := &cobra.Command{
		Use:   "note",
		Short: "Manage notes",
	}

	var noteTags []string
	noteAddCmd := &cobra.Command{
		Use:   "add [title] [content]",
		Short: "Add a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(configPath)
			if err != nil {
				return err
			}
			defer eng.close()

			id, err := eng.notes.Create(context.Background(), &types.Note{
				Title:   args[0],
				Content: args[1],
				Tags:    noteTags,
			})
			if err != nil {
				return fmt.Errorf("create note: %w", err)
			}

			fmt.Println(successStyle.Render("✓ Note created: ") + id)
			return nil
		},
	}
	noteAddCmd.Flags().StringSliceVar(&noteTags, "tag", nil, "tags for the note (repeatable)")
	noteCmd.AddCommand(noteAddCmd)

	rootCmd.AddCommand(queryCmd, conversationsCmd, historyCmd, summarizeCmd, noteCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
