// Package logger's StyledLogger wraps slog.Logger with theme-aware
// formatting helpers for the concepts this repo logs about most: proxies,
// jobs and per-domain counts.
package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/idkny/sale-sofia/internal/core/domain"
	"github.com/idkny/sale-sofia/theme"
)

// StyledLogger wraps slog.Logger with theme-aware formatting methods.
type StyledLogger struct {
	logger *slog.Logger
	theme  *theme.Theme
}

// NewStyledLogger creates a new styled logger with the given theme.
func NewStyledLogger(logger *slog.Logger, theme *theme.Theme) *StyledLogger {
	return &StyledLogger{logger: logger, theme: theme}
}

// NewWithTheme creates both a regular logger and a styled logger.
func NewWithTheme(cfg *Config) (*slog.Logger, *StyledLogger, func(), error) {
	log, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return log, NewStyledLogger(log, theme.GetTheme(cfg.Theme)), cleanup, nil
}

func (sl *StyledLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }
func (sl *StyledLogger) Info(msg string, args ...any)  { sl.logger.Info(msg, args...) }
func (sl *StyledLogger) Warn(msg string, args ...any)  { sl.logger.Warn(msg, args...) }
func (sl *StyledLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

// InfoWithCount appends a styled "(n)" suffix, e.g. "Published pool (42)".
func (sl *StyledLogger) InfoWithCount(msg string, count int, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, pterm.NewStyle(sl.theme.Counts).Sprint("(", count, ")"))
	sl.logger.Info(styled, args...)
}

// InfoWithProxy highlights a proxy identity in the message.
func (sl *StyledLogger) InfoWithProxy(msg, proxyKey string, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, pterm.NewStyle(sl.theme.Proxy).Sprint(proxyKey))
	sl.logger.Info(styled, args...)
}

// WarnWithProxy is InfoWithProxy at warn level.
func (sl *StyledLogger) WarnWithProxy(msg, proxyKey string, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, pterm.NewStyle(sl.theme.Proxy).Sprint(proxyKey))
	sl.logger.Warn(styled, args...)
}

// InfoWithDomain highlights a site domain, used by the resilience layer.
func (sl *StyledLogger) InfoWithDomain(msg, siteDomain string, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, pterm.NewStyle(sl.theme.Domain).Sprint(siteDomain))
	sl.logger.Info(styled, args...)
}

// InfoJobStatus colours the status word according to its job state.
func (sl *StyledLogger) InfoJobStatus(msg, jobID string, status domain.JobStatus, args ...any) {
	var c pterm.Color
	switch status {
	case domain.JobComplete:
		c = sl.theme.JobComplete
	case domain.JobFailed:
		c = sl.theme.JobFailed
	default:
		c = sl.theme.JobRunning
	}
	styled := fmt.Sprintf("%s job=%s status=%s", msg, jobID, pterm.NewStyle(c).Sprint(status))
	sl.logger.Info(styled, args...)
}

// GetUnderlying returns the wrapped slog.Logger for call sites that need it directly.
func (sl *StyledLogger) GetUnderlying() *slog.Logger { return sl.logger }

// With returns a new StyledLogger carrying additional key-value pairs.
func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{logger: sl.logger.With(args...), theme: sl.theme}
}
