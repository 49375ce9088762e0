package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/pitch-analyst/api/middleware"
	"github.com/fyerfyer/pitch-analyst/api/model"
	"github.com/fyerfyer/pitch-analyst/pkg/taskqueue"
)

// TaskHandler 后台任务查询
type TaskHandler struct {
	queue  taskqueue.Queue
	logger *logrus.Logger
}

// NewTaskHandler 创建任务处理器，queue可以为nil
func NewTaskHandler(queue taskqueue.Queue) *TaskHandler {
	return &TaskHandler{queue: queue, logger: middleware.GetLogger()}
}

// GetTask 查询任务状态
// GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	if h.queue == nil {
		middleware.HandleError(c, middleware.NewUnavailableError("Task queue is not enabled"))
		return
	}
	var req model.TaskRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid task id"))
		return
	}

	task, err := h.queue.GetTask(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, taskqueue.ErrTaskNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("Task not found"))
			return
		}
		h.logger.WithError(err).WithField("task_id", req.ID).Error("Failed to get task")
		middleware.HandleError(c, middleware.NewInternalError("Failed to get task", err.Error()))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(taskqueue.NewTaskInfo(task)))
}
