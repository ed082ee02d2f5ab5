package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"taskflow/internal/apperrors"
	"taskflow/internal/domain"
	"taskflow/internal/service"
)

func (h *Handler) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), actorFrom(c), domain.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, taskToResponse(*task))
}

func (h *Handler) listTasks(c *gin.Context) {
	var query listTasksQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	opts := service.ListOptions{Page: 1, PageSize: h.opts.DefaultPageSize}
	if query.Page != nil {
		opts.Page = *query.Page
	}
	if query.PageSize != nil {
		opts.PageSize = *query.PageSize
	}
	if opts.PageSize > h.opts.MaxPageSize {
		h.respondError(c, apperrors.Validation("page_size must be at most "+strconv.Itoa(h.opts.MaxPageSize)))
		return
	}

	if query.Status != "" {
		status := domain.TaskStatus(query.Status)
		opts.Status = &status
	}
	if query.Priority != "" {
		priority := domain.TaskPriority(query.Priority)
		opts.Priority = &priority
	}

	page, err := h.tasks.List(c.Request.Context(), actorFrom(c), opts)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := TaskListResponse{
		Tasks:      make([]TaskResponse, len(page.Tasks)),
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
	for i := range page.Tasks {
		resp.Tasks[i] = taskToResponse(page.Tasks[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(*task))
}

func (h *Handler) updateTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, bindError(err))
		return
	}
	if err := binding.Validator.ValidateStruct(req.fields()); err != nil {
		h.respondError(c, bindError(err))
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), actorFrom(c), id, req.patch())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(*task))
}

func (h *Handler) deleteTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) completeTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.tasks.Complete(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(*task))
}

func (h *Handler) taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(c, apperrors.Validation("invalid task id"))
		return 0, false
	}
	return id, true
}
