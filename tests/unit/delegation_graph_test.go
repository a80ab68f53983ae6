package unit

import (
	"context"
	"errors"
	"sync"
	"testing"

	delegationgraph "agora/contexts/participation/delegation-graph"
	delegationentities "agora/contexts/participation/delegation-graph/domain/entities"
	delegationerrors "agora/contexts/participation/delegation-graph/domain/errors"
	delegationtransport "agora/contexts/participation/delegation-graph/transport/http"
	tallyengine "agora/contexts/participation/tally-engine"
	tallydelegation "agora/contexts/participation/tally-engine/adapters/delegation"
	tallyentities "agora/contexts/participation/tally-engine/domain/entities"
	tallyerrors "agora/contexts/participation/tally-engine/domain/errors"
	tallytransport "agora/contexts/participation/tally-engine/transport/http"
)

func seedDelegationVote(module delegationgraph.Module, voteID string, topicID string, members ...string) {
	module.Store.SetVote(delegationentities.VoteProjection{
		VoteID:            voteID,
		TopicID:           topicID,
		Status:            delegationentities.VoteStatusOpen,
		DelegationAllowed: true,
	})
	for _, member := range members {
		module.Store.SetTopicMember(topicID, member)
	}
}

func TestDelegationChainFlowsIntoTally(t *testing.T) {
	delegationModule := delegationgraph.NewInMemoryModule(nil, nil)
	tallyModule := tallyengine.NewInMemoryModule(
		tallydelegation.Resolver{Graph: delegationModule.Resolver},
		nil,
	)

	vote, err := tallyModule.Handler.CreateVoteHandler(context.Background(), tallytransport.CreateVoteRequest{
		TopicID:           "topic-1",
		MinChoices:        1,
		MaxChoices:        1,
		DelegationAllowed: true,
		AuthType:          "soft",
		Options:           []string{"Yes", "No"},
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	yesOption := vote.Options[0].OptionID
	noOption := vote.Options[1].OptionID

	members := []string{"user-1", "user-2", "user-3", "user-4"}
	for _, member := range members {
		tallyModule.Store.SetTopicMember("topic-1", member)
	}
	seedDelegationVote(delegationModule, vote.VoteID, "topic-1", members...)

	// user-1 -> user-2 -> user-3; user-3 and user-4 vote directly.
	if _, err := delegationModule.Handler.SetDelegationHandler(context.Background(), vote.VoteID, "user-1", delegationtransport.SetDelegationRequest{ToUserID: "user-2"}); err != nil {
		t.Fatalf("set delegation user-1 failed: %v", err)
	}
	if _, err := delegationModule.Handler.SetDelegationHandler(context.Background(), vote.VoteID, "user-2", delegationtransport.SetDelegationRequest{ToUserID: "user-3"}); err != nil {
		t.Fatalf("set delegation user-2 failed: %v", err)
	}

	if _, err := tallyModule.Handler.CastBallotHandler(context.Background(), vote.VoteID, "user-3", tallytransport.CastBallotRequest{OptionIDs: []string{yesOption}}); err != nil {
		t.Fatalf("cast ballot user-3 failed: %v", err)
	}
	if _, err := tallyModule.Handler.CastBallotHandler(context.Background(), vote.VoteID, "user-4", tallytransport.CastBallotRequest{OptionIDs: []string{noOption}}); err != nil {
		t.Fatalf("cast ballot user-4 failed: %v", err)
	}

	results, err := tallyModule.Handler.GetResultsHandler(context.Background(), vote.VoteID)
	if err != nil {
		t.Fatalf("compute results failed: %v", err)
	}
	if results.EligibleVoters != 4 {
		t.Fatalf("expected 4 eligible voters, got %d", results.EligibleVoters)
	}
	if results.BallotsCounted != 4 {
		t.Fatalf("expected 4 counted ballots, got %d", results.BallotsCounted)
	}
	counts := map[string]int{}
	for _, option := range results.Options {
		counts[option.OptionID] = option.Count
	}
	if counts[yesOption] != 3 {
		t.Fatalf("expected yes count 3 via delegation chain, got %d", counts[yesOption])
	}
	if counts[noOption] != 1 {
		t.Fatalf("expected no count 1, got %d", counts[noOption])
	}

	// Results are a pure read: recomputing must not change anything.
	again, err := tallyModule.Handler.GetResultsHandler(context.Background(), vote.VoteID)
	if err != nil {
		t.Fatalf("recompute results failed: %v", err)
	}
	if again.BallotsCounted != results.BallotsCounted {
		t.Fatalf("expected idempotent results, got %d then %d", results.BallotsCounted, again.BallotsCounted)
	}
}

func TestDelegationRejectsSelfAndCycle(t *testing.T) {
	module := delegationgraph.NewInMemoryModule(nil, nil)
	seedDelegationVote(module, "vote-1", "topic-1", "user-1", "user-2")

	_, err := module.Handler.SetDelegationHandler(context.Background(), "vote-1", "user-1", delegationtransport.SetDelegationRequest{ToUserID: "user-1"})
	if !errors.Is(err, delegationerrors.ErrSelfDelegation) {
		t.Fatalf("expected self delegation rejection, got %v", err)
	}
	if err.Error() != "Cannot delegate to self." {
		t.Fatalf("unexpected self delegation message: %q", err.Error())
	}

	if _, err := module.Handler.SetDelegationHandler(context.Background(), "vote-1", "user-1", delegationtransport.SetDelegationRequest{ToUserID: "user-2"}); err != nil {
		t.Fatalf("set delegation failed: %v", err)
	}
	_, err = module.Handler.SetDelegationHandler(context.Background(), "vote-1", "user-2", delegationtransport.SetDelegationRequest{ToUserID: "user-1"})
	if !errors.Is(err, delegationerrors.ErrCyclicDelegation) {
		t.Fatalf("expected cycle rejection, got %v", err)
	}
	if err.Error() != "Sorry, you cannot delegate your vote to this person." {
		t.Fatalf("unexpected cycle message: %q", err.Error())
	}
}

func TestDelegationOverwriteAndDelete(t *testing.T) {
	module := delegationgraph.NewInMemoryModule(nil, nil)
	seedDelegationVote(module, "vote-1", "topic-1", "user-1", "user-2", "user-3")

	first, err := module.Handler.SetDelegationHandler(context.Background(), "vote-1", "user-1", delegationtransport.SetDelegationRequest{ToUserID: "user-2"})
	if err != nil {
		t.Fatalf("set delegation failed: %v", err)
	}
	if first.Replaced {
		t.Fatalf("expected fresh delegation, got replaced")
	}

	second, err := module.Handler.SetDelegationHandler(context.Background(), "vote-1", "user-1", delegationtransport.SetDelegationRequest{ToUserID: "user-3"})
	if err != nil {
		t.Fatalf("overwrite delegation failed: %v", err)
	}
	if !second.Replaced {
		t.Fatalf("expected silent overwrite of existing delegation")
	}

	listed, err := module.Handler.ListDelegationsHandler(context.Background(), "vote-1")
	if err != nil {
		t.Fatalf("list delegations failed: %v", err)
	}
	if len(listed.Items) != 1 {
		t.Fatalf("expected a single outgoing edge, got %d", len(listed.Items))
	}
	if listed.Items[0].ToUserID != "user-3" {
		t.Fatalf("expected edge to user-3, got %s", listed.Items[0].ToUserID)
	}

	if err := module.Handler.DeleteDelegationHandler(context.Background(), "vote-1", "user-1"); err != nil {
		t.Fatalf("delete delegation failed: %v", err)
	}
	err = module.Handler.DeleteDelegationHandler(context.Background(), "vote-1", "user-1")
	if !errors.Is(err, delegationerrors.ErrDelegationNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDelegationConcurrentOppositeWritersCannotFormCycle(t *testing.T) {
	module := delegationgraph.NewInMemoryModule(nil, nil)
	seedDelegationVote(module, "vote-1", "topic-1", "user-1", "user-2")

	// user-1 -> user-2 and user-2 -> user-1 race each other. The commit-time
	// walk runs under the store's write serialization, so whichever commits
	// second must see the first edge and be rejected.
	attempts := [][2]string{{"user-1", "user-2"}, {"user-2", "user-1"}}
	results := make([]error, len(attempts))
	var wg sync.WaitGroup
	for i, attempt := range attempts {
		wg.Add(1)
		go func(i int, byUserID string, toUserID string) {
			defer wg.Done()
			_, results[i] = module.Handler.SetDelegationHandler(context.Background(), "vote-1", byUserID, delegationtransport.SetDelegationRequest{ToUserID: toUserID})
		}(i, attempt[0], attempt[1])
	}
	wg.Wait()

	rejected := 0
	for _, err := range results {
		if errors.Is(err, delegationerrors.ErrCyclicDelegation) {
			rejected++
			continue
		}
		if err != nil {
			t.Fatalf("unexpected delegation error: %v", err)
		}
	}
	if rejected != 1 {
		t.Fatalf("expected exactly one rejected writer, got %d of %d", rejected, len(results))
	}

	listed, err := module.Handler.ListDelegationsHandler(context.Background(), "vote-1")
	if err != nil {
		t.Fatalf("list delegations failed: %v", err)
	}
	if len(listed.Items) != 1 {
		t.Fatalf("expected a single surviving edge, got %d", len(listed.Items))
	}
}

func TestTallyWithholdsResultsWhenCycleEscapedWriteChecks(t *testing.T) {
	// A cycle that slipped past write-time prevention must surface as a
	// data-integrity failure on read, never as a partial tally.
	seed := []delegationentities.Delegation{
		{VoteID: "vote-1", ByUserID: "user-1", ToUserID: "user-2"},
		{VoteID: "vote-1", ByUserID: "user-2", ToUserID: "user-1"},
	}
	delegationModule := delegationgraph.NewInMemoryModule(seed, nil)
	seedDelegationVote(delegationModule, "vote-1", "topic-1", "user-1", "user-2", "user-3")

	tallyModule := tallyengine.NewInMemoryModule(
		tallydelegation.Resolver{Graph: delegationModule.Resolver},
		nil,
	)
	if err := tallyModule.Store.SaveVote(context.Background(), tallyentities.Vote{
		VoteID:            "vote-1",
		TopicID:           "topic-1",
		MinChoices:        1,
		MaxChoices:        1,
		DelegationAllowed: true,
		AuthType:          tallyentities.AuthTypeSoft,
		Status:            tallyentities.VoteStatusOpen,
		Options: []tallyentities.VoteOption{
			{OptionID: "option-1", VoteID: "vote-1", Value: "Yes"},
			{OptionID: "option-2", VoteID: "vote-1", Value: "No"},
		},
	}); err != nil {
		t.Fatalf("save vote failed: %v", err)
	}
	for _, member := range []string{"user-1", "user-2", "user-3"} {
		tallyModule.Store.SetTopicMember("topic-1", member)
	}
	if _, err := tallyModule.Handler.CastBallotHandler(context.Background(), "vote-1", "user-3", tallytransport.CastBallotRequest{OptionIDs: []string{"option-1"}}); err != nil {
		t.Fatalf("cast ballot failed: %v", err)
	}

	_, err := tallyModule.Handler.GetResultsHandler(context.Background(), "vote-1")
	if !errors.Is(err, tallyerrors.ErrTallyIntegrity) {
		t.Fatalf("expected withheld tally on cyclic graph, got %v", err)
	}
}

func TestDelegationRequiresDelegateTopicAccess(t *testing.T) {
	module := delegationgraph.NewInMemoryModule(nil, nil)
	seedDelegationVote(module, "vote-1", "topic-1", "user-1")

	_, err := module.Handler.SetDelegationHandler(context.Background(), "vote-1", "user-1", delegationtransport.SetDelegationRequest{ToUserID: "outsider-1"})
	if !errors.Is(err, delegationerrors.ErrDelegateNoAccess) {
		t.Fatalf("expected delegate access rejection, got %v", err)
	}
}
