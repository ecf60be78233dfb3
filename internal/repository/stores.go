package repository

// Stores bundles one implementation of every store contract.
type Stores struct {
	Products     ProductStore
	Modules      ModuleStore
	Lessons      LessonStore
	Entitlements EntitlementStore
	Progress     ProgressStore
	Users        UserStore
	Integrity    IntegrityStore
}

func NewPostgresStores(db TxDB) Stores {
	return Stores{
		Products:     NewProductRepository(db),
		Modules:      NewModuleRepository(db),
		Lessons:      NewLessonRepository(db),
		Entitlements: NewEntitlementRepository(db),
		Progress:     NewProgressRepository(db),
		Users:        NewUserRepository(db),
		Integrity:    NewIntegrityRepository(db),
	}
}
