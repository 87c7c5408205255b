package cmd

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"imgtasks/internal/apihandlers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long:  `Starts an HTTP server exposing task creation, lookup, listing, and retry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		router := gin.Default()
		apiHandler := apihandlers.NewAPIHandler(appInstance.TaskService)

		v1 := router.Group("/api/v1")
		{
			taskGroup := v1.Group("/tasks")
			{
				taskGroup.POST("", apiHandler.CreateTaskHandler)
				taskGroup.GET("", apiHandler.ListTasksHandler)
				taskGroup.GET("/:id", apiHandler.GetTaskHandler)
				taskGroup.POST("/:id/retry", apiHandler.RetryTaskHandler)
			}
		}

		router.GET("/health", func(c *gin.Context) {
			if err := appInstance.TaskStore.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		listenAddr := fmt.Sprintf("%s:%s", appInstance.Config.Server.Address, appInstance.Config.Server.Port)
		log.WithField("addr", listenAddr).Info("starting API server")
		return router.Run(listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
