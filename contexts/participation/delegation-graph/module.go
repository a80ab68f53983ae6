package delegationgraph

import (
	"log/slog"

	httpadapter "agora/contexts/participation/delegation-graph/adapters/http"
	"agora/contexts/participation/delegation-graph/adapters/memory"
	"agora/contexts/participation/delegation-graph/application/commands"
	"agora/contexts/participation/delegation-graph/application/queries"
	"agora/contexts/participation/delegation-graph/domain/entities"
	"agora/contexts/participation/delegation-graph/ports"
)

type Module struct {
	Handler  httpadapter.Handler
	Resolver queries.ResolveUseCase
	Store    *memory.Store
}

type Dependencies struct {
	Delegations ports.DelegationRepository
	Votes       ports.VoteCatalog
	Oracle      ports.MembershipOracle
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	delegationUseCase := commands.DelegationUseCase{
		Delegations: deps.Delegations,
		Votes:       deps.Votes,
		Oracle:      deps.Oracle,
		Outbox:      deps.Outbox,
		Clock:       deps.Clock,
		IDGen:       deps.IDGen,
		Logger:      deps.Logger,
	}
	resolveUseCase := queries.ResolveUseCase{
		Delegations: deps.Delegations,
		Votes:       deps.Votes,
		Oracle:      deps.Oracle,
	}
	return Module{
		Handler: httpadapter.Handler{
			Delegations: delegationUseCase,
			Resolver:    resolveUseCase,
			Logger:      deps.Logger,
		},
		Resolver: resolveUseCase,
	}
}

func NewInMemoryModule(seed []entities.Delegation, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Delegations: store,
		Votes:       store,
		Oracle:      store,
		Outbox:      store,
		Clock:       store,
		IDGen:       store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
