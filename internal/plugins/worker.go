package plugins

import (
	"slices"
	"strings"

	"github.com/vyrodovalexey/webedge/internal/config"
)

// WorkerChunkName is the cache group holding the quote worker's code.
const WorkerChunkName = "worker-chunks"

// workerChunkPriority ranks the worker group above the default vendor groups.
const workerChunkPriority = 31

// workerPackagePaths are always bundled into the worker chunk.
var workerPackagePaths = []string{
	"/packages/smart-router/",
	"/packages/swap-sdk/",
	"/packages/token-lists/",
}

// WorkerDeps maps package names to the resource path fragments that
// identify them, with "@pancakeswap/x" resolving to "packages/x".
func WorkerDeps(packages []string) []string {
	deps := make([]string, 0, len(packages)+len(workerPackagePaths))
	for _, p := range packages {
		deps = append(deps, strings.Replace(p, "@pancakeswap/", "packages/", 1))
	}
	return append(deps, workerPackagePaths...)
}

// WorkerChunks adds the worker-chunks cache group so the bundler groups
// the quote worker's dependencies, which it cannot discover on its own.
// It is a no-op when chunk splitting is disabled.
func WorkerChunks() Transform {
	return func(site *config.Site) (*config.Site, error) {
		build := &site.Spec.Build
		if build.SplitChunks == nil {
			return site, nil
		}

		group := config.CacheGroup{
			Name:               WorkerChunkName,
			Chunks:             "all",
			Test:               WorkerDeps(build.WorkerDependencies),
			Priority:           workerChunkPriority,
			ReuseExistingChunk: true,
		}

		groups := build.SplitChunks.CacheGroups
		if i := slices.IndexFunc(groups, func(g config.CacheGroup) bool { return g.Name == WorkerChunkName }); i >= 0 {
			groups[i] = group
		} else {
			build.SplitChunks.CacheGroups = append(groups, group)
		}
		return site, nil
	}
}
