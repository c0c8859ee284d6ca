package services

import (
	"context"
	"errors"
	"time"

	"spark-backend/internal/apperr"
	"spark-backend/internal/matching"
	"spark-backend/internal/models"
	"spark-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Clock supplies the current time to services
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// profileFetchParallelism bounds concurrent directory lookups per request
const profileFetchParallelism = 4

// storeError turns a repository failure into an AppError, logging anything
// that is not a plain miss.
func storeError(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFoundf(resource, err)
	}
	log.Error().Err(err).Str("resource", resource).Msg("Store call failed")
	return apperr.DB(err)
}

// resolveProfiles looks up ids in batches of repository.MaxInQuery and
// returns the profiles in the order of ids. Unknown ids are skipped.
func resolveProfiles(ctx context.Context, users repository.UserStore, ids []string) ([]*models.User, error) {
	chunks := matching.Chunk(ids, repository.MaxInQuery)
	results := make([][]*models.User, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(profileFetchParallelism)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			found, err := users.GetByIDs(gctx, chunk)
			if err != nil {
				return err
			}
			byID := make(map[string]*models.User, len(found))
			for _, u := range found {
				byID[u.ID] = u
			}
			for _, id := range chunk {
				if u, ok := byID[id]; ok {
					results[i] = append(results[i], u)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, storeError("users", err)
	}

	out := make([]*models.User, 0, len(ids))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
