package unit

import (
	"context"
	"errors"
	"testing"

	tallyengine "agora/contexts/participation/tally-engine"
	tallyerrors "agora/contexts/participation/tally-engine/domain/errors"
	tallytransport "agora/contexts/participation/tally-engine/transport/http"
)

func TestTallyCreateVoteRejectsBadOptionSets(t *testing.T) {
	module := tallyengine.NewInMemoryModule(nil, nil)

	_, err := module.Handler.CreateVoteHandler(context.Background(), tallytransport.CreateVoteRequest{
		TopicID:    "topic-1",
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "soft",
		Options:    []string{"Yes"},
	})
	if !errors.Is(err, tallyerrors.ErrTooFewOptions) {
		t.Fatalf("expected too-few-options rejection, got %v", err)
	}
	if err.Error() != "At least 2 vote options are required" {
		t.Fatalf("unexpected too-few-options message: %q", err.Error())
	}

	_, err = module.Handler.CreateVoteHandler(context.Background(), tallytransport.CreateVoteRequest{
		TopicID:    "topic-1",
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "hard",
		Options:    []string{"Yes", "  yes "},
	})
	if !errors.Is(err, tallyerrors.ErrOptionsTooSimilar) {
		t.Fatalf("expected near-duplicate rejection on hard vote, got %v", err)
	}
	if err.Error() != "Vote options are too similar" {
		t.Fatalf("unexpected similarity message: %q", err.Error())
	}

	// Soft votes tolerate near-duplicates; only signed ballots reject them.
	if _, err := module.Handler.CreateVoteHandler(context.Background(), tallytransport.CreateVoteRequest{
		TopicID:    "topic-1",
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "soft",
		Options:    []string{"Yes", "  yes "},
	}); err != nil {
		t.Fatalf("expected soft vote to accept similar options, got %v", err)
	}

	_, err = module.Handler.CreateVoteHandler(context.Background(), tallytransport.CreateVoteRequest{
		TopicID:    "topic-1",
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "soft",
		Options:    []string{"__internal", "No"},
	})
	if !errors.Is(err, tallyerrors.ErrInvalidOptionValue) {
		t.Fatalf("expected reserved prefix rejection, got %v", err)
	}

	_, err = module.Handler.CreateVoteHandler(context.Background(), tallytransport.CreateVoteRequest{
		TopicID:    "topic-1",
		MinChoices: 2,
		MaxChoices: 1,
		AuthType:   "soft",
		Options:    []string{"Yes", "No"},
	})
	if !errors.Is(err, tallyerrors.ErrInvalidVoteInput) {
		t.Fatalf("expected choice bound rejection, got %v", err)
	}
}

func TestTallyRecastReplacesBallotInPlace(t *testing.T) {
	module := tallyengine.NewInMemoryModule(nil, nil)
	vote, err := module.Handler.CreateVoteHandler(context.Background(), tallytransport.CreateVoteRequest{
		TopicID:    "topic-1",
		MinChoices: 1,
		MaxChoices: 2,
		AuthType:   "soft",
		Options:    []string{"Yes", "No", "Abstain"},
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	module.Store.SetTopicMember("topic-1", "user-1")
	yesOption := vote.Options[0].OptionID
	noOption := vote.Options[1].OptionID

	first, err := module.Handler.CastBallotHandler(context.Background(), vote.VoteID, "user-1", tallytransport.CastBallotRequest{
		OptionIDs: []string{yesOption},
	})
	if err != nil {
		t.Fatalf("first cast failed: %v", err)
	}
	if first.Replaced {
		t.Fatalf("expected fresh ballot on first cast")
	}

	second, err := module.Handler.CastBallotHandler(context.Background(), vote.VoteID, "user-1", tallytransport.CastBallotRequest{
		OptionIDs: []string{noOption},
	})
	if err != nil {
		t.Fatalf("recast failed: %v", err)
	}
	if !second.Replaced {
		t.Fatalf("expected recast to replace prior ballot")
	}
	if first.BallotID != second.BallotID {
		t.Fatalf("expected ballot replaced in place, got ids %s and %s", first.BallotID, second.BallotID)
	}

	results, err := module.Handler.GetResultsHandler(context.Background(), vote.VoteID)
	if err != nil {
		t.Fatalf("compute results failed: %v", err)
	}
	if results.BallotsCounted != 1 {
		t.Fatalf("expected one counted ballot after recast, got %d", results.BallotsCounted)
	}
	for _, option := range results.Options {
		switch option.OptionID {
		case yesOption:
			if option.Count != 0 {
				t.Fatalf("expected prior choice dropped, yes count %d", option.Count)
			}
		case noOption:
			if option.Count != 1 {
				t.Fatalf("expected replacement choice counted, no count %d", option.Count)
			}
		}
	}
}

func TestTallyCastRejections(t *testing.T) {
	module := tallyengine.NewInMemoryModule(nil, nil)
	vote, err := module.Handler.CreateVoteHandler(context.Background(), tallytransport.CreateVoteRequest{
		TopicID:    "topic-1",
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "hard",
		Options:    []string{"Yes", "No"},
	})
	if err != nil {
		t.Fatalf("create hard vote failed: %v", err)
	}
	module.Store.SetTopicMember("topic-1", "user-1")
	yesOption := vote.Options[0].OptionID

	// The HTTP cast path is always a soft cast; hard votes only accept
	// ballots through the signing orchestrator.
	_, err = module.Handler.CastBallotHandler(context.Background(), vote.VoteID, "user-1", tallytransport.CastBallotRequest{
		OptionIDs: []string{yesOption},
	})
	if !errors.Is(err, tallyerrors.ErrHardAuthRequired) {
		t.Fatalf("expected hard auth rejection, got %v", err)
	}

	softVote, err := module.Handler.CreateVoteHandler(context.Background(), tallytransport.CreateVoteRequest{
		TopicID:    "topic-1",
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "soft",
		Options:    []string{"Yes", "No"},
	})
	if err != nil {
		t.Fatalf("create soft vote failed: %v", err)
	}
	_, err = module.Handler.CastBallotHandler(context.Background(), softVote.VoteID, "outsider-1", tallytransport.CastBallotRequest{
		OptionIDs: []string{softVote.Options[0].OptionID},
	})
	if !errors.Is(err, tallyerrors.ErrNoTopicAccess) {
		t.Fatalf("expected topic access rejection, got %v", err)
	}

	_, err = module.Handler.CastBallotHandler(context.Background(), softVote.VoteID, "user-1", tallytransport.CastBallotRequest{
		OptionIDs: []string{"option-unknown"},
	})
	if !errors.Is(err, tallyerrors.ErrUnknownOption) {
		t.Fatalf("expected unknown option rejection, got %v", err)
	}
}
