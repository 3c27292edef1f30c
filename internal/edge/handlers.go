package edge

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/vyrodovalexey/webedge/internal/banners"
	"github.com/vyrodovalexey/webedge/internal/menustatus"
	"github.com/vyrodovalexey/webedge/internal/observability"
	"github.com/vyrodovalexey/webedge/internal/util"
)

// API paths.
const (
	BannersPath    = "/api/banners"
	MenuStatusPath = "/api/menu/status"
	HealthPath     = "/healthz"
	MetricsPath    = "/metrics"
)

type handlers struct {
	holder  *Holder
	metrics *observability.Metrics
}

// snapshot returns the current snapshot or answers 503.
func (h *handlers) snapshot(c *gin.Context) *Snapshot {
	snap := h.holder.Load()
	if snap == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": "site not loaded",
		})
	}
	return snap
}

// banners serves the banners to render for the signals in the query:
// chainId, locale, path and repeated flag parameters. Without a locale
// parameter the preferred Accept-Language tag is used.
func (h *handlers) banners(c *gin.Context) {
	snap := h.snapshot(c)
	if snap == nil {
		return
	}

	signals, err := bannerSignals(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, validationBody(err))
		return
	}

	selected := []banners.Banner{}
	if snap.Catalog != nil {
		selected = snap.Catalog.Select(signals)
	}

	c.JSON(http.StatusOK, gin.H{"banners": selected})
}

func bannerSignals(c *gin.Context) (banners.Signals, error) {
	signals := banners.Signals{Path: c.Query("path")}

	verr := util.NewValidationError("invalid banner query")

	if raw := c.Query("locale"); raw != "" {
		tag, err := language.Parse(raw)
		if err != nil {
			verr.AddField("locale", "must be a BCP 47 language tag")
		}
		signals.Locale = tag.String()
	} else if tags, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language")); err == nil && len(tags) > 0 {
		signals.Locale = tags[0].String()
	}

	if raw := c.Query("chainId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			verr.AddField("chainId", "must be an integer")
		}
		signals.ChainID = id
	}

	if flags := c.QueryArray("flag"); len(flags) > 0 {
		signals.Flags = make(map[string]bool, len(flags))
		for _, f := range flags {
			signals.Flags[f] = true
		}
	}

	if verr.HasFields() {
		return banners.Signals{}, verr
	}
	return signals, nil
}

// menuStatus serves the menu status map for the locked and block query
// parameters.
func (h *handlers) menuStatus(c *gin.Context) {
	snap := h.snapshot(c)
	if snap == nil {
		return
	}

	signals := menustatus.Signals{IFO: snap.Menu.IFO}

	verr := util.NewValidationError("invalid menu status query")
	if raw := c.Query("locked"); raw != "" {
		locked, err := strconv.ParseBool(raw)
		if err != nil {
			verr.AddField("locked", "must be a boolean")
		}
		signals.UserLocked = locked
	}
	if raw := c.Query("block"); raw != "" {
		block, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			verr.AddField("block", "must be a block number")
		}
		signals.CurrentBlock = block
	}
	if verr.HasFields() {
		c.AbortWithStatusJSON(http.StatusBadRequest, validationBody(verr))
		return
	}

	status := menustatus.StatusOf(signals)
	h.metrics.RecordMenuStatus(len(status))

	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *handlers) health(c *gin.Context) {
	snap := h.holder.Load()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "site": snap.Site})
}

func validationBody(err error) gin.H {
	body := gin.H{"error": err.Error()}
	var verr *util.ValidationError
	if errors.As(err, &verr) && verr.HasFields() {
		body["fields"] = verr.Fields
	}
	return body
}
