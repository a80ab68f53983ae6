package containerbuilder

import (
	"log/slog"

	"agora/contexts/participation/container-builder/adapters/memory"
	"agora/contexts/participation/container-builder/application"
	"agora/contexts/participation/container-builder/ports"
)

type Module struct {
	Builder application.BuilderUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Artifacts ports.ArtifactStore
	Options   ports.OptionCatalog
	Secret    string
	BasePath  string
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Builder: application.BuilderUseCase{
			Artifacts: deps.Artifacts,
			Options:   deps.Options,
			Secret:    deps.Secret,
			BasePath:  deps.BasePath,
			Clock:     deps.Clock,
			IDGen:     deps.IDGen,
			Logger:    deps.Logger,
		},
	}
}

func NewInMemoryModule(secret string, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Artifacts: store,
		Options:   store,
		Secret:    secret,
		BasePath:  "/api/downloads",
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}
