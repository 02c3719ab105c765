// cmd/session-cli/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"casai-client/internal/backend"
	"casai-client/internal/chat"
	"casai-client/internal/common/config"
	"casai-client/internal/common/database"
	"casai-client/internal/common/errors"
	"casai-client/internal/common/logger"
	"casai-client/internal/common/observability"
	"casai-client/internal/models"
	"casai-client/internal/session"
	"casai-client/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting CasAI session core...",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "Redis initialization")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()

	persistence, err := store.New(rdb.GetClient(), log)
	if err != nil {
		zapLog.Fatal("store init failed", zap.Error(err))
	}

	backendClient := backend.NewClient(cfg.Backend, log)
	if health, err := backendClient.Health(ctx); err != nil {
		zapLog.Warn("backend health probe failed", zap.Error(err))
	} else {
		zapLog.Info("backend reachable", zap.Any("services", health.Services))
	}

	sessionCfg := session.LoadConfig()
	sessionCfg.UploadRoot = cfg.Backend.UploadRoot
	sessionCfg.PromptTemplate = cfg.Generation.PromptTemplate
	sessionCfg.CacheTTL = cfg.Search.CacheTTLDuration()
	sessionCfg.MaxResults = cfg.Search.MaxResults

	sess := session.New(sessionCfg, backendClient, log)
	chatSess := chat.New(backendClient, cfg.Chat.HistoryLimit, log)

	// --- Metrics endpoint ---
	if cfg.Metrics.Enabled {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			zapLog.Info("metrics listening", zap.String("address", cfg.Metrics.Address))
			if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
				zapLog.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	// --- Signal handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		zapLog.Info("shutting down", zap.String("signal", sig.String()))
		os.Exit(0)
	}()

	runLoop(ctx, sess, chatSess, persistence, obs)
}

// runLoop drives the session from stdin, one command per line.
func runLoop(ctx context.Context, sess *session.Session, chatSess *chat.Session, persistence *store.Store, obs *observability.Observability) {
	var lastResult *session.SearchResult

	fmt.Println("casai> commands: upload <file> | detect | items | select <i> | search [text] | generate <text> | generate-rec <i> | save | toggle <i> | wishlist | projects | chat <text> | attach <file> | quit")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("casai> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		cmd, arg := parts[0], ""
		if len(parts) == 2 {
			arg = strings.TrimSpace(parts[1])
		}

		start := time.Now()
		switch cmd {
		case "quit", "exit":
			return

		case "upload":
			data, err := os.ReadFile(arg)
			if err != nil {
				fmt.Printf("read failed: %v\n", err)
				continue
			}
			items, err := sess.Submit(ctx, filepath.Base(arg), data)
			reportOutcome(obs, ctx, "upload", err)
			if err != nil {
				fmt.Printf("upload failed: %v\n", err)
				continue
			}
			printItems(items)

		case "detect":
			// Re-runs detection for the active upload after a failure.
			items, err := sess.Detect(ctx)
			reportOutcome(obs, ctx, "detect", err)
			if err != nil {
				fmt.Printf("detect failed: %v\n", err)
				continue
			}
			printItems(items)

		case "items":
			printItems(sess.Detections())

		case "select":
			i, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Println("usage: select <index>")
				continue
			}
			if err := sess.Select(i); err != nil {
				fmt.Printf("select failed: %v\n", err)
			}

		case "search":
			result, err := sess.Search(ctx, arg)
			reportOutcome(obs, ctx, "search", err)
			if err != nil {
				fmt.Printf("search failed: %v\n", err)
				continue
			}
			lastResult = result
			fmt.Printf("%d recommendations, %d shopping links\n", len(result.Recommendations), len(result.ExternalLinks))
			for i, rec := range result.Recommendations {
				fmt.Printf("  [%d] %s (%s) %s\n", i, rec.Name, rec.Price, rec.ProductURL)
			}
			for _, link := range result.ExternalLinks {
				fmt.Printf("  - %s | %s | %s\n", link.Title, link.Source, link.URL)
			}

		case "generate":
			artifact, err := sess.Generate(ctx, session.GenerateInput{VisionText: arg})
			reportOutcome(obs, ctx, "generate", err)
			if err != nil {
				fmt.Printf("generate failed: %v\n", err)
				continue
			}
			fmt.Printf("generated image (%d bytes base64)\n", len(artifact))

		case "generate-rec":
			i, err := strconv.Atoi(arg)
			if err != nil || lastResult == nil || i < 0 || i >= len(lastResult.Recommendations) {
				fmt.Println("usage: generate-rec <recommendation index> (run search first)")
				continue
			}
			rec := lastResult.Recommendations[i]
			artifact, err := sess.Generate(ctx, session.GenerateInput{Recommendation: &rec})
			reportOutcome(obs, ctx, "generate", err)
			if err != nil {
				fmt.Printf("generate failed: %v\n", err)
				continue
			}
			fmt.Printf("generated image (%d bytes base64)\n", len(artifact))

		case "save":
			artifact := sess.CurrentArtifact()
			saved, err := persistence.Projects.FindByImage(ctx, artifact)
			if err == nil && saved {
				fmt.Println("already saved")
				continue
			}
			project := models.SavedProject{
				Image: artifact,
				Date:  models.NewProjectDate(time.Now()),
			}
			if lastResult != nil {
				project.Recommendations = lastResult.Recommendations
				project.Vision = lastResult.Context.VisionText
			}
			id, err := persistence.Projects.Save(ctx, project)
			reportOutcome(obs, ctx, "save", err)
			if err != nil {
				fmt.Printf("save failed: %v\n", err)
				continue
			}
			fmt.Printf("saved project %s\n", id)

		case "toggle":
			i, err := strconv.Atoi(arg)
			if err != nil || lastResult == nil || i < 0 || i >= len(lastResult.Recommendations) {
				fmt.Println("usage: toggle <recommendation index> (run search first)")
				continue
			}
			added, err := persistence.Wishlist.Toggle(ctx, lastResult.Recommendations[i])
			if err != nil {
				fmt.Printf("toggle failed: %v\n", err)
				continue
			}
			if added {
				fmt.Println("added to wishlist")
			} else {
				fmt.Println("removed from wishlist")
			}

		case "wishlist":
			items, err := persistence.Wishlist.List(ctx)
			if err != nil {
				fmt.Printf("wishlist failed: %v\n", err)
				continue
			}
			for _, item := range items {
				fmt.Printf("  - %s (%s) %s\n", item.Name, item.Price, item.ProductURL)
			}
			fmt.Printf("%d saved products\n", len(items))

		case "projects":
			items, err := persistence.Projects.List(ctx)
			if err != nil {
				fmt.Printf("projects failed: %v\n", err)
				continue
			}
			for _, item := range items {
				fmt.Printf("  - %s %s %q\n", item.ID, item.Date, item.Vision)
			}
			fmt.Printf("%d saved projects\n", len(items))

		case "attach":
			data, err := os.ReadFile(arg)
			if err != nil {
				fmt.Printf("read failed: %v\n", err)
				continue
			}
			if err := chatSess.Attach(filepath.Base(arg), data); err != nil {
				fmt.Printf("attach failed: %v\n", err)
			}

		case "chat":
			reply, err := chatSess.Send(ctx, arg)
			reportOutcome(obs, ctx, "chat", err)
			if err != nil && !errors.IsValidation(err) {
				fmt.Printf("chat failed: %v\n", err)
			}
			if reply != nil {
				fmt.Printf("assistant: %s\n", reply.Text)
			}

		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
		obs.RecordOperationDuration(ctx, cmd, time.Since(start))
	}
}

func reportOutcome(obs *observability.Observability, ctx context.Context, operation string, err error) {
	status := "success"
	if err != nil {
		status = string(errors.CodeOf(err))
	}
	obs.RecordOperation(ctx, operation, status)
}

func printItems(items []models.DetectedItem) {
	if len(items) == 0 {
		fmt.Println("no furniture detected")
		return
	}
	for i, item := range items {
		fmt.Printf("  [%d] %s %s\n", i, item.Class, item.CropReference)
	}
	fmt.Println("  (index 0 selected by default)")
}
