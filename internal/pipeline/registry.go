/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Settings selects and parameterises stages by name.
type Settings struct {
	Treatments        []string    `mapstructure:"treatments"`
	Normalizer        string      `mapstructure:"normalizer"`
	Encoder           string      `mapstructure:"encoder"`
	GarbageTokens     []string    `mapstructure:"garbage_tokens"`
	OutlierMultiplier float64     `mapstructure:"outlier_multiplier"`
	OutlierMode       OutlierMode `mapstructure:"outlier_mode"`
}

// DefaultSettings mirrors NewDefaultHandler.
func DefaultSettings() Settings {
	return Settings{
		Treatments:        []string{"garbage", "missing", "outlier", "duplicate"},
		GarbageTokens:     DefaultGarbageTokens,
		OutlierMultiplier: DefaultIQRMultiplier,
		OutlierMode:       OutlierCascading,
	}
}

// TreatmentFactory builds a treatment from settings.
type TreatmentFactory func(Settings) Treatment

var (
	mu          sync.RWMutex
	treatments  = make(map[string]TreatmentFactory)
	normalizers = make(map[string]func() Normalizer)
	encoders    = make(map[string]func() Encoder)
)

func init() {
	RegisterTreatment("garbage", func(s Settings) Treatment {
		tokens := s.GarbageTokens
		if len(tokens) == 0 {
			tokens = DefaultGarbageTokens
		}
		return GarbageValueTreatment{Tokens: tokens}
	})
	RegisterTreatment("missing", func(Settings) Treatment { return MissingValueTreatment{} })
	RegisterTreatment("outlier", func(s Settings) Treatment {
		return OutlierTreatment{Multiplier: s.OutlierMultiplier, Mode: s.OutlierMode}
	})
	RegisterTreatment("duplicate", func(Settings) Treatment { return DuplicateTreatment{} })
	RegisterNormalizer("minmax", func() Normalizer { return MinMaxNormalizer{} })
	RegisterEncoder("label", func() Encoder { return LabelEncoder{} })
}

// RegisterTreatment makes a treatment available to Build under name.
func RegisterTreatment(name string, f TreatmentFactory) {
	mu.Lock()
	defer mu.Unlock()
	treatments[strings.ToLower(name)] = f
}

func RegisterNormalizer(name string, f func() Normalizer) {
	mu.Lock()
	defer mu.Unlock()
	normalizers[strings.ToLower(name)] = f
}

func RegisterEncoder(name string, f func() Encoder) {
	mu.Lock()
	defer mu.Unlock()
	encoders[strings.ToLower(name)] = f
}

// TreatmentNames lists the registered treatment names.
func TreatmentNames() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(treatments))
	for n := range treatments {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build assembles a Handler with the sanity check and the stages named in s.
func Build(s Settings, logger *zap.Logger) (*Handler, error) {
	switch s.OutlierMode {
	case "", OutlierCascading, OutlierIndependent:
	default:
		return nil, fmt.Errorf("unknown outlier mode %q (expected %s or %s)", s.OutlierMode, OutlierCascading, OutlierIndependent)
	}

	mu.RLock()
	defer mu.RUnlock()

	opts := []Option{WithChecks(DataSanityCheck{})}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	for _, name := range s.Treatments {
		f, ok := treatments[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown treatment %q", name)
		}
		opts = append(opts, WithTreatments(f(s)))
	}
	if s.Normalizer != "" {
		f, ok := normalizers[strings.ToLower(s.Normalizer)]
		if !ok {
			return nil, fmt.Errorf("unknown normalizer %q", s.Normalizer)
		}
		opts = append(opts, WithNormalizer(f()))
	}
	if s.Encoder != "" {
		f, ok := encoders[strings.ToLower(s.Encoder)]
		if !ok {
			return nil, fmt.Errorf("unknown encoder %q", s.Encoder)
		}
		opts = append(opts, WithEncoder(f()))
	}
	return NewHandler(opts...), nil
}
