package context

// ValidationPredicate evaluates a loaded Context and returns an error if invalid.
type ValidationPredicate func(Context) error

// validatingLoader wraps a Loader to run additional validation predicates at load time.
type validatingLoader struct {
	Loader
	predicates []ValidationPredicate
}

// NewValidatingLoader creates a loader that runs validation predicates after Load().
func NewValidatingLoader(inner Loader, predicates ...ValidationPredicate) *validatingLoader {
	return &validatingLoader{
		Loader:     inner,
		predicates: predicates,
	}
}

// Load delegates to inner loader, then runs validation predicates.
func (l *validatingLoader) Load(path string) (Context, error) {
	ctx, err := l.Loader.Load(path)
	if err != nil {
		return nil, err
	}

	for _, predicate := range l.predicates {
		if err := predicate(ctx); err != nil {
			return nil, err
		}
	}

	return ctx, nil
}
