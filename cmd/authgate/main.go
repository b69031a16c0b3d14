package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/mritob/authgate"
	"github.com/mritob/authgate/federation"
	"github.com/mritob/authgate/federation/intra"
	"github.com/mritob/authgate/httpapi"
	"github.com/mritob/authgate/middleware/gateware"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	var (
		flagConfigPath = flag.String("config", "", "path to config.yaml (fallback: $CONFIG_PATH)")
		flagEnvFile    = flag.String("env-file", ".env", "path to .env (loaded if present)")
	)
	flag.Parse()

	if *flagEnvFile != "" {
		if err := godotenv.Load(*flagEnvFile); err == nil {
			log.Printf("dotenv: loaded %s", *flagEnvFile)
		}
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.JWT.SigningKey == "" {
		log.Fatal("JWT_SIGNING_KEY missing")
	}
	if len(cfg.State.EncryptionKey) != 32 {
		log.Fatal("STATE_ENCRYPTION_KEY must be 32 bytes")
	}
	if cfg.State.HMACKey == "" {
		log.Fatal("STATE_HMAC_KEY missing")
	}

	logger := authgate.DefaultLogger()

	bunDB, err := openDatabase(cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer bunDB.Close()

	accounts := authgate.NewAccountsRepository(bunDB)

	tokens := authgate.NewTokenServiceFromConfig(cfg, logger)

	auther := authgate.NewAuthenticator(accounts, tokens).WithLogger(logger)
	linker := authgate.NewIdentityLinker(accounts, tokens).WithLogger(logger)

	states := federation.NewEncryptedStateManager(
		[]byte(cfg.State.EncryptionKey),
		[]byte(cfg.State.HMACKey),
		cfg.StateTTL(),
	)

	provider := intra.New(intra.Config{
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		CallbackURL:  cfg.Provider.CallbackURL,
		Scopes:       cfg.Provider.Scopes,
	})

	guard := federation.NewEntryGuard(provider, states, linker, federation.GuardConfig{
		CookieSecure:    cfg.Cookies.Secure,
		SuccessRedirect: cfg.Redirects.Success,
		ConfirmRedirect: cfg.Redirects.Confirm,
		ErrorRedirect:   cfg.Redirects.Error,
		Logger:          logger,
	})

	avatars, err := newDiskAvatarStorage(cfg.Avatars.Dir, cfg.Avatars.BaseURL)
	if err != nil {
		log.Fatalf("avatar storage: %v", err)
	}

	controller := httpapi.NewController(auther, linker, accounts, httpapi.Config{
		CookieDuration: time.Duration(cfg.JWT.ExpirationHours) * time.Hour,
		CookieSecure:   cfg.Cookies.Secure,
		Debug:          cfg.Debug,
	}).WithAvatarStorage(avatars).WithTokenService(tokens).WithLogger(logger)

	app := fiber.New(fiber.Config{
		AppName:               "authgate",
		DisableStartupMessage: !cfg.Debug,
	})

	// Registered ahead of the gate so avatar images stay public.
	app.Static(cfg.Avatars.BaseURL, cfg.Avatars.Dir)

	app.Use(gateware.New(gateware.Config{
		Routes:    httpapi.RouteTable(),
		Validator: tokens,
		Resolver: func(ctx context.Context, claims *authgate.Claims) (authgate.Identity, error) {
			account, err := accounts.FindByUsername(ctx, claims.Username)
			if err != nil {
				return nil, err
			}
			return authgate.NewIdentityFromAccount(account), nil
		},
		Logger: logger,
	}))

	httpapi.RegisterRoutes(app, controller, guard)

	go func() {
		if err := app.Listen(cfg.Server.Addr); err != nil {
			log.Fatalf("server: %v", err)
		}
	}()

	log.Printf("authgate listening on %s", cfg.Server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func openDatabase(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := bunDB.NewCreateTable().
		Model((*authgate.Account)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, err
	}

	return bunDB, nil
}
