// Package rolewarden parses service configuration and composes the bot, the
// ops API and the backup schedule into one run loop.
package rolewarden

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"rolewarden/internal/api"
	"rolewarden/internal/app"
	"rolewarden/internal/audit"
	"rolewarden/internal/backup"
	"rolewarden/internal/gateway"
	entrypoint "rolewarden/internal/platform/cmd"
	"rolewarden/internal/roles"
	"rolewarden/internal/storage/sqlite"
)

// Config holds service configuration.
type Config struct {
	DiscordToken string `env:"ROLEWARDEN_DISCORD_TOKEN"`
	GuildID      string `env:"ROLEWARDEN_GUILD_ID"`
	DBPath       string `env:"ROLEWARDEN_DB_PATH"    envDefault:"rolewarden.db"`
	RulesPath    string `env:"ROLEWARDEN_RULES_PATH" envDefault:"rules.yaml"`

	HTTPAddr string `env:"ROLEWARDEN_HTTP_ADDR" envDefault:":8090"`
	APIToken string `env:"ROLEWARDEN_API_TOKEN"`

	BackupDir      string        `env:"ROLEWARDEN_BACKUP_DIR"`
	BackupKeep     int           `env:"ROLEWARDEN_BACKUP_KEEP"     envDefault:"2"`
	BackupInterval time.Duration `env:"ROLEWARDEN_BACKUP_INTERVAL" envDefault:"24h"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.GuildID, "guild-id", cfg.GuildID, "guild the bot serves")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database file")
	fs.StringVar(&cfg.RulesPath, "rules-path", cfg.RulesPath, "YAML rules file")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "ops API listen address")
	fs.StringVar(&cfg.BackupDir, "backup-dir", cfg.BackupDir, "directory for database backups (empty disables)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	if cfg.DiscordToken == "" {
		return Config{}, fmt.Errorf("ROLEWARDEN_DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return Config{}, fmt.Errorf("guild id is required")
	}
	return cfg, nil
}

// Run builds the service and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, "rolewarden", func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	guildCfg, err := app.LoadGuildConfig(cfg.RulesPath)
	if err != nil {
		return err
	}
	rules, err := guildCfg.PromotionRules()
	if err != nil {
		return err
	}
	pairs, err := guildCfg.TogglePairs()
	if err != nil {
		return err
	}
	toggles, err := roles.NewToggleGroups(pairs)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	var sink audit.Sink = audit.LogSink{}
	if guildCfg.LogChannelID != "" {
		sink = audit.Multi{audit.LogSink{}, gateway.NewChannelSink(session, guildCfg.LogChannelID)}
	}

	platform := gateway.NewPlatform(session, cfg.GuildID)
	coordinator, err := roles.NewCoordinator(platform, store, toggles, sink)
	if err != nil {
		return err
	}
	reconciler, err := roles.NewReconciler(platform, store, coordinator, sink, guildCfg.DefaultRoleID)
	if err != nil {
		return err
	}
	engine, err := app.NewEngine(store, platform, coordinator, rules)
	if err != nil {
		return err
	}

	var backups *backup.Manager
	if cfg.BackupDir != "" {
		backups, err = backup.New(backup.Config{
			SourcePath: cfg.DBPath,
			DB:         store.DB(),
			Dir:        cfg.BackupDir,
			Keep:       cfg.BackupKeep,
			Interval:   cfg.BackupInterval,
		})
		if err != nil {
			return fmt.Errorf("configure backups: %w", err)
		}
	}

	// A typed nil must not reach the interface fields.
	var backupSink gateway.Backups
	var apiBackups api.Backups
	if backups != nil {
		backupSink = backups
		apiBackups = backups
	}

	gw, err := gateway.New(session, cfg.GuildID, engine, coordinator, reconciler, guildCfg, backupSink)
	if err != nil {
		return err
	}
	if err := gw.Start(ctx); err != nil {
		return err
	}
	defer gw.Close()
	log.Printf("gateway connected for guild %s", cfg.GuildID)

	handler := &api.Handler{
		Stats:     engine,
		History:   store,
		Mutator:   coordinator,
		Rebuilder: reconciler,
		Members:   gw,
		Backups:   apiBackups,
		Token:     cfg.APIToken,
	}
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: handler.Router()}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("ops API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if backups != nil {
		go backups.Run(ctx)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("serve ops API: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ops API shutdown: %v", err)
	}
	return nil
}
