package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
)

const probeTimeout = 5 * time.Second

// Probe checks the whisper and LM Studio endpoints concurrently so the CLI
// can fail fast before recording any audio. Any HTTP answer counts as
// reachable; only transport failures are reported. Skipped endpoints (e.g.
// the in-process llama provider) are passed as empty strings.
func (f *Factory) Probe(ctx context.Context) error {
	endpoints := map[string]string{
		"whisper": f.cfg.Whisper.BaseURL,
	}
	if f.cfg.Chat.Provider != "llama" {
		endpoints["lmstudio"] = f.cfg.LMStudio.BaseURL
	}

	p := pool.New().WithErrors().WithContext(ctx)
	for name, baseURL := range endpoints {
		if baseURL == "" {
			continue
		}
		p.Go(func(ctx context.Context) error {
			if err := probeEndpoint(ctx, baseURL); err != nil {
				return fmt.Errorf("%s endpoint %s unreachable: %w", name, baseURL, err)
			}
			f.logger.Debug().Str("endpoint", name).Str("url", baseURL).Msg("endpoint reachable")
			return nil
		})
	}

	return p.Wait()
}

func probeEndpoint(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	url := strings.TrimSuffix(baseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
