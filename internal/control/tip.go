package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/archiver/internal/core/domain"
	"github.com/vietddude/archiver/internal/infra/gateway"
)

// Tip returns the current network height from the first gateway whose info
// endpoint answers, together with that gateway's name.
func Tip(ctx context.Context, gateways []domain.Gateway, proxy *domain.Proxy, opts gateway.Options) (int64, string, error) {
	client, err := gateway.NewClient(proxy, opts)
	if err != nil {
		return 0, "", err
	}
	defer client.Close()

	var errs []error
	for _, gw := range gateways {
		if gw.InfoURL == "" {
			continue
		}
		height, err := client.FetchHeight(ctx, gw.InfoURL)
		if err != nil {
			slog.Warn("Failed to read network height", "gateway", gw.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", gw.Name, err))
			continue
		}
		return height, gw.Name, nil
	}

	if len(errs) == 0 {
		return 0, "", domain.ConfigErrorf("no gateway has an info_url")
	}
	return 0, "", errors.Join(errs...)
}
