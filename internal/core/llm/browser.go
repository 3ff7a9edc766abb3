package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
)

const (
	browserWindowWidth  = 1024
	browserWindowHeight = 850
)

// ScriptEvaluator runs a JavaScript expression in a page and returns the
// JSON encoding of its (awaited) result.
type ScriptEvaluator interface {
	Evaluate(ctx context.Context, expression string) ([]byte, error)
	Close() error
}

// ChromeBrowser is a lazily started headless Chrome shared by all evaluations.
// Every evaluation gets its own tab.
type ChromeBrowser struct {
	mu            sync.Mutex
	userDataDir   string
	userAgent     string
	logger        *zerolog.Logger
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

// NewChromeBrowser configures a browser without launching it.
func NewChromeBrowser(cfg *config.Config, logger *zerolog.Logger) *ChromeBrowser {
	return &ChromeBrowser{
		userDataDir: cfg.BrowserUserDataDir,
		userAgent:   cfg.BrowserUserAgent,
		logger:      logger,
	}
}

func (b *ChromeBrowser) ensureStarted() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.WindowSize(browserWindowWidth, browserWindowHeight),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.Flag("no-zygote", true),
	)

	if b.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.userAgent))
	}

	if b.userDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(b.userDataDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// An empty Run launches the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()

		return nil, fmt.Errorf("starting browser: %w", err)
	}

	b.browserCtx = browserCtx
	b.cancelAlloc = cancelAlloc
	b.cancelBrowser = cancelBrowser

	b.logger.Info().Msg("headless browser started")

	return browserCtx, nil
}

// Evaluate runs expression in a fresh tab, awaiting a returned promise.
func (b *ChromeBrowser) Evaluate(ctx context.Context, expression string) ([]byte, error) {
	browserCtx, err := b.ensureStarted()
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var raw []byte

	err = chromedp.Run(tabCtx, chromedp.Evaluate(expression, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, fmt.Errorf("evaluating script: %w", err)
	}

	return raw, nil
}

// Close shuts the browser down. It is safe to call on a browser that never started.
func (b *ChromeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx == nil {
		return nil
	}

	b.cancelBrowser()
	b.cancelAlloc()
	b.browserCtx = nil

	b.logger.Info().Msg("headless browser stopped")

	return nil
}

// functionBodyExpression wraps source as the body of `return <source>;` and
// invokes it, so a challenge written as a bare expression evaluates to its value.
func functionBodyExpression(source string) (string, error) {
	quoted, err := json.Marshal("return " + source + ";")
	if err != nil {
		return "", fmt.Errorf("quoting script: %w", err)
	}

	return "(new Function(" + string(quoted) + "))()", nil
}

// Ensure ChromeBrowser implements ScriptEvaluator interface.
var _ ScriptEvaluator = (*ChromeBrowser)(nil)
