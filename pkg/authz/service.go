package authz

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/sirupsen/logrus"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Config controls Service construction. Empty paths select the embedded
// capability table shipped with the binary.
type Config struct {
	ModelPath  string
	PolicyPath string
	Logger     *logrus.Logger
}

func (c Config) validate() error {
	if (c.ModelPath == "") != (c.PolicyPath == "") {
		return configError("ModelPath and PolicyPath must be set together")
	}
	return nil
}

// Service wraps a casbin enforcer holding the static capability table.
// The table maps (role, resource-system) pairs to permitted access levels
// and grants decision authority over the approval ledger.
type Service struct {
	enforcer *casbin.Enforcer
	logger   *logrus.Entry
	mu       sync.RWMutex
}

func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var logger *logrus.Entry
	if cfg.Logger != nil {
		logger = cfg.Logger.WithField("component", "authz")
	} else {
		logger = logrus.WithField("component", "authz")
	}

	var enf *casbin.Enforcer
	var err error
	if cfg.ModelPath != "" {
		enf, err = casbin.NewEnforcer(cfg.ModelPath, fileadapter.NewAdapter(cfg.PolicyPath))
		if err != nil {
			return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
		}
	} else {
		enf, err = embeddedEnforcer()
		if err != nil {
			return nil, err
		}
	}

	return &Service{enforcer: enf, logger: logger}, nil
}

func embeddedEnforcer() (*casbin.Enforcer, error) {
	m, err := casbinmodel.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("authz: embedded model is invalid: %w", err)
	}
	enf, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}
	for _, line := range strings.Split(embeddedPolicy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		switch fields[0] {
		case "p":
			if _, err := enf.AddPolicy(toAny(fields[1:])...); err != nil {
				return nil, fmt.Errorf("authz: bad policy line %q: %w", line, err)
			}
		case "g":
			if _, err := enf.AddGroupingPolicy(toAny(fields[1:])...); err != nil {
				return nil, fmt.Errorf("authz: bad grouping line %q: %w", line, err)
			}
		default:
			return nil, configError("unknown policy line %q", line)
		}
	}
	return enf, nil
}

func toAny(fields []string) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = f
	}
	return out
}

// Check evaluates a request without returning an authorization error.
// Given identical inputs it always returns the same verdict: the table is
// static for the enforcer's lifetime.
func (s *Service) Check(req Request) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.enforcer.Enforce(req.Subject, req.Object, req.Action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce failed: %w", err)
	}
	return res, nil
}

// Authorize returns a coded forbidden error if the request is denied.
func (s *Service) Authorize(ctx context.Context, req Request) error {
	allowed, err := s.Check(req)
	if err != nil {
		return err
	}
	if !allowed {
		s.logger.WithContext(ctx).WithFields(logrus.Fields{
			"subject": req.Subject,
			"object":  req.Object,
			"action":  req.Action,
		}).Warn("authz denied request")
		return forbiddenError(req)
	}
	return nil
}
