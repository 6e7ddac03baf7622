package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func setHistoryRoutes(r gin.IRoutes, opts Options) {
	r.GET("/history/", requireBearerUser(opts), historyListHandler(opts))
}

func historyListHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := currentUser(c)
		if !ok {
			abortUnauthorized(c)
			return
		}

		records, err := opts.Store.ListHistoryByUser(c.Request.Context(), u.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "查询历史失败"})
			return
		}

		out := make([]gin.H, 0, len(records))
		for _, r := range records {
			out = append(out, gin.H{
				"id":           r.ID,
				"user_email":   r.UserEmail,
				"feature_type": r.FeatureType,
				"input_text":   r.InputText,
				"output_text":  r.OutputText,
				"created_at":   r.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}
