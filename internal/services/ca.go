package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/plexsphere/platctl/internal/castatus"
)

// caService is the Dogtag CA. A started CA accepts connections long before
// it serves requests, so Start and Restart also poll its status endpoint
// until it reports "running".
type caService struct {
	*systemdService
}

func (s *caService) Start(ctx context.Context, instance string, opts ...Option) error {
	if err := s.systemdService.Start(ctx, instance, opts...); err != nil {
		return err
	}
	if applyOptions(opts).wait {
		return s.waitUntilRunning(ctx)
	}
	return nil
}

func (s *caService) Restart(ctx context.Context, instance string, opts ...Option) error {
	if err := s.systemdService.Restart(ctx, instance, opts...); err != nil {
		return err
	}
	if applyOptions(opts).wait {
		return s.waitUntilRunning(ctx)
	}
	return nil
}

// statusURL goes through the httpd proxy when it is configured, and the
// CA's own HTTPS port otherwise.
func (s *caService) statusURL() string {
	port := castatus.ProxyPort
	if !fileExists(s.deps.Paths.HTTPDIPAConf) || !fileExists(s.deps.Paths.HTTPDIPAPKIProxyConf) {
		s.logger.Debug("the httpd proxy is not installed, wait on local port")
		port = castatus.BackendPort
	}
	return castatus.StatusURL(s.deps.CAHost, port)
}

func (s *caService) waitUntilRunning(ctx context.Context) error {
	if s.deps.CAStatus == nil {
		return fmt.Errorf("services: %s: no CA status checker configured", s.name)
	}
	url := s.statusURL()
	s.logger.Debug("waiting until the CA is running", "url", url)

	var status string
	err := poll(ctx, s.deps.Clock, s.deps.PollInterval, s.deps.StartupTimeout,
		func(ctx context.Context) (bool, error) {
			st, err := s.deps.CAStatus.Status(ctx, url)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return false, ctxErr
				}
				checkErr := &StatusCheckError{URL: url, Err: err}
				s.logger.Debug("CA status check failed", "error", checkErr)
				status = checkErr.Error()
				return false, nil
			}
			status = st
			s.logger.Debug("CA status", "status", status)
			return status == castatus.StatusRunning, nil
		},
		func(int) { s.logger.Debug("waiting for CA to start") })

	switch {
	case err == nil:
		s.logger.Info("CA is running")
		return nil
	case errors.Is(err, errDeadline):
		return &DidNotStartError{Service: s.name, Timeout: s.deps.StartupTimeout, LastStatus: status}
	default:
		return fmt.Errorf("services: wait for %s: %w", s.name, err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
