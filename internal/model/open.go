package model

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/config"
)

// Open builds a store from configuration, installs the configured user
// dictionary file and loads the warm list. Any failure is returned before the
// store is handed out.
func Open(cfg config.ModelConfig, opts ...Option) (*Store, error) {
	s := NewStore(cfg.Dir, opts...)
	if cfg.UserDictionary != "" {
		if err := s.SetUserDictionary(cfg.UserDictionary); err != nil {
			return nil, fmt.Errorf("installing user dictionary: %w", err)
		}
	}
	if err := s.Warm(cfg.Warm...); err != nil {
		return nil, fmt.Errorf("warming model store: %w", err)
	}
	s.logger.Info("model store ready", "dir", cfg.Dir, "loaded", s.Loaded())
	return s, nil
}
