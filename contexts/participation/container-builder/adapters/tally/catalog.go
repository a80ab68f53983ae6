package tallyadapter

import (
	"context"
	"strings"

	domainerrors "agora/contexts/participation/container-builder/domain/errors"
	"agora/contexts/participation/container-builder/ports"
	tallyqueries "agora/contexts/participation/tally-engine/application/queries"
)

// Catalog resolves option values through the tally engine's vote catalog.
type Catalog struct {
	Results tallyqueries.ResultsUseCase
}

func (c Catalog) ListOptionValues(ctx context.Context, voteID string, optionIDs []string) ([]string, error) {
	vote, err := c.Results.GetVote(ctx, voteID)
	if err != nil {
		return nil, err
	}
	valuesByID := make(map[string]string, len(vote.Options))
	for _, option := range vote.Options {
		valuesByID[option.OptionID] = option.Value
	}
	values := make([]string, 0, len(optionIDs))
	for _, optionID := range optionIDs {
		value, ok := valuesByID[strings.TrimSpace(optionID)]
		if !ok {
			return nil, domainerrors.ErrInvalidContainerInput
		}
		values = append(values, value)
	}
	return values, nil
}

var _ ports.OptionCatalog = Catalog{}
