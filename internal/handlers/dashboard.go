// internal/handlers/dashboard.go
package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/ranking"
	"github.com/javajoker/canva-seat-ledger/internal/services"
	"github.com/javajoker/canva-seat-ledger/internal/textnorm"
	"github.com/javajoker/canva-seat-ledger/internal/utils"
)

const defaultTopDomains = 10

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
	}
}

// GET /schools
func (h *DashboardHandler) ListSchools(c *gin.Context) {
	overview, err := h.dashboardService.Overview(c.Request.Context())
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	params := utils.GetPaginationParams(c)
	views := filterViews(overview.Schools, params.Search, c.Query("status"))

	utils.PaginatedResponse(c, utils.Paginate(views, params), gin.H{
		"stats":    overview.Stats,
		"snapshot": overview.Snapshot,
		"stale":    overview.Snapshot.Stale,
		"partial":  overview.Snapshot.Partial,
	})
}

// filterViews keeps views whose school name or id contains search, ignoring
// case and accents, and whose license status matches status.
func filterViews(views []models.SchoolLicenseView, search, status string) []models.SchoolLicenseView {
	search = textnorm.Fold(search)
	status = strings.TrimSpace(status)
	if search == "" && status == "" {
		return views
	}

	out := make([]models.SchoolLicenseView, 0, len(views))
	for _, v := range views {
		if status != "" && !strings.EqualFold(string(v.Status), status) {
			continue
		}
		if search != "" && !strings.Contains(textnorm.Fold(v.School.Name), search) && v.School.ID != search {
			continue
		}
		out = append(out, v)
	}
	return out
}

// GET /schools/:id
func (h *DashboardHandler) GetSchool(c *gin.Context) {
	view, err := h.dashboardService.School(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, view)
}

// GET /stats
func (h *DashboardHandler) GetStats(c *gin.Context) {
	top, err := strconv.Atoi(c.DefaultQuery("top_domains", strconv.Itoa(defaultTopDomains)))
	if err != nil || top < 0 {
		top = defaultTopDomains
	}

	report, err := h.dashboardService.Stats(c.Request.Context(), top)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, report)
}

// GET /rankings
func (h *DashboardHandler) GetRankings(c *gin.Context) {
	metric, err := ranking.ParseMetric(c.Query("metric"))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	report, err := h.dashboardService.Rankings(c.Request.Context(), metric, utils.GetLimitParam(c, ranking.DefaultTopN, utils.MaxPageSize))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, report)
}

// GET /rankings/schools
func (h *DashboardHandler) GetSchoolRankings(c *gin.Context) {
	metric, err := ranking.ParseMetric(c.Query("metric"))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	report, err := h.dashboardService.SchoolRankings(c.Request.Context(), metric, utils.GetLimitParam(c, ranking.DefaultTopN, utils.MaxPageSize))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, report)
}
