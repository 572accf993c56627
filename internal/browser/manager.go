// internal/browser/manager.go

// Package browser drives Chrome over CDP and exposes it through the
// schemas.Page surface the engine consumes. One manager owns one browser
// process; each run gets its own tab.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
	"github.com/mkarrick/flowpilot/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager handles the browser process lifecycle and tab creation.
type Manager struct {
	cfg           config.BrowserConfig
	actionTimeout time.Duration
	logger        *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc

	wg sync.WaitGroup

	// Initialization is deferred until the first page is requested.
	initOnce sync.Once
	initErr  error
}

var _ schemas.Browser = (*Manager)(nil)

// NewManager creates a browser manager. The Chrome process is not started
// until NewPage is first called.
func NewManager(cfg config.BrowserConfig, actionTimeout time.Duration, logger *zap.Logger) *Manager {
	if actionTimeout <= 0 {
		actionTimeout = 5 * time.Second
	}
	m := &Manager{
		cfg:           cfg,
		actionTimeout: actionTimeout,
		logger:        logger.Named("browser_manager"),
	}
	m.logger.Info("Browser manager created (initialization deferred).")
	return m
}

func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser.", zap.Bool("headless", m.cfg.Headless))

		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), buildAllocatorOptions(m.cfg)...)
		browserCtx, browserStop := chromedp.NewContext(allocCtx)

		// Starting the browser eagerly surfaces launch failures here
		// instead of on the first action.
		startCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
		runCtx, runCancel := combineContext(startCtx, browserCtx)
		defer runCancel()
		if err := chromedp.Run(runCtx); err != nil {
			browserStop()
			allocCancel()
			m.initErr = fmt.Errorf("failed to launch browser: %w", err)
			return
		}

		m.allocCtx = allocCtx
		m.allocCancel = allocCancel
		m.browserCtx = browserCtx
		m.browserStop = browserStop
		m.logger.Info("Browser launched.")
	})
	return m.initErr
}

// NewPage opens a fresh tab.
func (m *Manager) NewPage(ctx context.Context) (schemas.Page, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(m.browserCtx)
	m.wg.Add(1)

	p := &Page{
		ctx:           tabCtx,
		actionTimeout: m.actionTimeout,
		logger:        m.logger.Named("page"),
		onClose: func() {
			tabCancel()
			m.wg.Done()
		},
	}
	m.logger.Debug("New page opened.")
	return p, nil
}

// Shutdown closes all tabs and the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.browserCtx == nil {
		m.logger.Info("Manager not initialized, nothing to shut down.")
		return nil
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for pages to close, shutting down anyway.")
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Grace period expired waiting for pages to close.")
	}

	m.browserStop()
	m.allocCancel()
	m.logger.Info("Browser manager shutdown complete.")
	return nil
}

// buildAllocatorOptions assembles the Chrome launch flags. The set is
// explicit rather than chromedp's defaults so automation banners and
// detection surfaces stay off.
func buildAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	w, h := cfg.WindowWidth, cfg.WindowHeight
	if w <= 0 {
		w = 1366
	}
	if h <= 0 {
		h = 900
	}
	opts = append(opts, chromedp.WindowSize(w, h))

	for name, value := range extraFlags(cfg.Args) {
		if value == "" {
			opts = append(opts, chromedp.Flag(name, true))
		} else {
			opts = append(opts, chromedp.Flag(name, value))
		}
	}
	return opts
}

// extraFlags parses user-provided args ("--foo", "--foo=bar", "foo=bar")
// into flag name/value pairs.
func extraFlags(args []string) map[string]string {
	flags := make(map[string]string, len(args))
	for _, arg := range args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		name, value, _ := strings.Cut(arg, "=")
		flags[name] = value
	}
	return flags
}

// combineContext cancels the derived context when either input does. The
// returned context derives from session so chromedp actions still find
// their target; deadline only contributes cancellation.
func combineContext(deadline, session context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(session)
	go func() {
		select {
		case <-deadline.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
