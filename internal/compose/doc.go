// Package compose folds an ordered list of configuration transforms
// over a base configuration value.
//
// The composer is generic over the configuration type and knows nothing
// about its shape. Composition is all or nothing: the first failing (or
// panicking) transform aborts with a *StepError and no partially
// composed value escapes.
//
//	site, err := compose.NewChain[*config.Site](compose.WithLogger(logger)).
//	    Use("define-constants", plugins.DefineConstants(defines)).
//	    Use("security-headers", plugins.SecurityHeaders()).
//	    Apply(ctx, base)
package compose
