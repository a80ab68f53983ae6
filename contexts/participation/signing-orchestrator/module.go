package signingorchestrator

import (
	"log/slog"

	httpadapter "agora/contexts/participation/signing-orchestrator/adapters/http"
	"agora/contexts/participation/signing-orchestrator/adapters/memory"
	"agora/contexts/participation/signing-orchestrator/adapters/provider"
	"agora/contexts/participation/signing-orchestrator/application/commands"
	"agora/contexts/participation/signing-orchestrator/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Signing commands.SigningUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Sessions   ports.SessionRepository
	Links      ports.IdentityLinkRepository
	Votes      ports.VoteCatalog
	Oracle     ports.MembershipOracle
	IDCard     ports.IDCardProvider
	MobileID   ports.MobileIDProvider
	Containers ports.ContainerBuilder
	Caster     ports.BallotCaster
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	signingUseCase := commands.SigningUseCase{
		Sessions:   deps.Sessions,
		Links:      deps.Links,
		Votes:      deps.Votes,
		Oracle:     deps.Oracle,
		IDCard:     deps.IDCard,
		MobileID:   deps.MobileID,
		Containers: deps.Containers,
		Caster:     deps.Caster,
		Outbox:     deps.Outbox,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Logger:     deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Signing: signingUseCase,
			Logger:  deps.Logger,
		},
		Signing: signingUseCase,
	}
}

// NewInMemoryModule wires the module against the in-memory store and the
// in-process provider simulator. Container building and ballot casting stay
// caller-supplied since they live in sibling modules.
func NewInMemoryModule(containers ports.ContainerBuilder, caster ports.BallotCaster, logger *slog.Logger) Module {
	store := memory.NewStore()
	simulator := provider.NewSimulator()
	module := NewModule(Dependencies{
		Sessions:   store,
		Links:      store,
		Votes:      store,
		Oracle:     store,
		IDCard:     simulator,
		MobileID:   simulator,
		Containers: containers,
		Caster:     caster,
		Outbox:     store,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
