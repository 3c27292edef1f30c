// Package config provides the site configuration model, YAML loading,
// validation, file watching, and process settings for webedge.
//
// # Site Documents
//
// A site is described by a YAML document:
//
//	apiVersion: webedge.io/v1
//	kind: Site
//	metadata:
//	  name: pancake-web
//	spec:
//	  redirects:
//	    - source: /swap/:outputCurrency
//	      destination: /swap?outputCurrency=:outputCurrency
//	      permanent: true
//
// ${VAR} and ${VAR:-default} references are substituted from the
// environment before parsing; "$$" yields a literal "$".
//
// # Loading
//
//	site, err := config.LoadSite("configs/webedge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateSite(site); err != nil {
//	    log.Fatal(err)
//	}
//
// ValidateSite compiles the rule tables, so a destination referencing a
// capture its source does not bind is reported at its document path.
//
// # File Watching
//
//	watcher, err := config.NewWatcher(path, func(site *config.Site) {
//	    // swap in the new site
//	}, config.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	watcher.Start(ctx)
//
// # Process Settings
//
// LoadSettings reads WEBEDGE_* variables into Settings.
package config
