package archive

import (
	"context"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/logger"
	"codeberg.org/mutker/vitalsd/internal/telemetry"
)

type service struct {
	repo Repository
	cfg  Config
}

type noopRecorder struct{}

// New returns a sqlite-backed recorder, or a no-op one when the archive is
// disabled.
func New(cfg Config) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Archive disabled, using no-op recorder")
		return noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg, logger.Std())
	if err != nil {
		return nil, err
	}

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

func (s *service) Record(ctx context.Context, channel telemetry.Channel, m telemetry.Measurement) error {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	if err := s.repo.Insert(newReading(channel, m)); err != nil {
		return errFactory.Wrap(ErrRecordFailed, err)
	}

	return nil
}

func (s *service) Close() error {
	return s.repo.Close()
}

func (*service) Enabled() bool {
	return true
}

func (noopRecorder) Record(context.Context, telemetry.Channel, telemetry.Measurement) error {
	return nil
}

func (noopRecorder) Close() error {
	return nil
}

func (noopRecorder) Enabled() bool {
	return false
}
