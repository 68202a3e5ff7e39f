package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ecociel/deferral/domain"
	"github.com/ecociel/deferral/executor"
	"github.com/ecociel/deferral/uc"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/emicklei/go-restful/v3/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Reader interface {
	Get(ctx context.Context, id string) (domain.Task, error)
	List(ctx context.Context) ([]domain.Task, error)
}

type Trigger interface {
	TriggerNow(ctx context.Context) (executor.Result, bool, error)
}

// TaskView is the JSON form of a pending task.
type TaskView struct {
	ID                string            `json:"id"`
	Username          string            `json:"username"`
	Repo              string            `json:"repo"`
	CommitID          string            `json:"commitId"`
	Path              string            `json:"path"`
	Endpoint          string            `json:"endpoint"`
	ScheduleTime      string            `json:"scheduleTime"`
	AdditionalParams  map[string]string `json:"additionalParams,omitempty"`
	ShouldPostComment bool              `json:"shouldPostComment"`
}

type SweepView struct {
	Due          int `json:"due"`
	Executed     int `json:"executed"`
	Failed       int `json:"failed"`
	DeleteFailed int `json:"deleteFailed"`
}

type Resource struct {
	schedule uc.ScheduleUseCase
	cancel   uc.CancelUseCase
	reader   Reader
	trigger  Trigger
}

func NewResource(schedule uc.ScheduleUseCase, cancel uc.CancelUseCase, reader Reader, trigger Trigger) *Resource {
	return &Resource{schedule: schedule, cancel: cancel, reader: reader, trigger: trigger}
}

// NewContainer wires the task, sweep and health services and serves metrics
// from gatherer.
func NewContainer(res *Resource, gatherer prometheus.Gatherer) *restful.Container {
	c := restful.NewContainer()
	c.Add(res.TaskService())
	c.Add(res.SweepService())
	c.Add(healthService())
	c.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return c
}

func (r *Resource) TaskService() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path("/tasks").Produces(restful.MIME_JSON)

	ws.Route(ws.POST("").To(r.createTask).
		Doc("schedule a deferred endpoint call").
		Consumes(restful.MIME_JSON).
		Produces("text/plain").
		Reads(uc.Submission{}))
	ws.Route(ws.GET("").To(r.listTasks).
		Doc("list pending tasks").
		Writes([]TaskView{}))
	ws.Route(ws.GET("/{id}").To(r.getTask).
		Doc("get a pending task").
		Param(ws.PathParameter("id", "task id")).
		Writes(TaskView{}))
	ws.Route(ws.DELETE("/{id}").To(r.deleteTask).
		Doc("remove a pending task").
		Param(ws.PathParameter("id", "task id")))
	return ws
}

func (r *Resource) SweepService() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path("/sweeps").Produces(restful.MIME_JSON)
	ws.Route(ws.POST("").To(r.sweepNow).
		Doc("run a sweep now unless one is running").
		Writes(SweepView{}))
	return ws
}

func healthService() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path("/health").Produces(restful.MIME_JSON)
	ws.Route(ws.GET("").To(func(req *restful.Request, resp *restful.Response) {
		_ = resp.WriteEntity(map[string]string{"status": "OK"})
	}))
	return ws
}

func (r *Resource) createTask(req *restful.Request, resp *restful.Response) {
	var sub uc.Submission
	if err := req.ReadEntity(&sub); err != nil {
		_ = resp.WriteErrorString(http.StatusBadRequest, err.Error())
		return
	}
	task, msg, err := r.schedule(req.Request.Context(), sub)
	if errors.Is(err, uc.ErrInvalidScheduleTime) {
		_ = resp.WriteErrorString(http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Printf("create task: %v", err)
		_ = resp.WriteErrorString(http.StatusInternalServerError, "could not schedule task")
		return
	}
	resp.Header().Set("Content-Type", "text/plain; charset=utf-8")
	resp.Header().Set("Location", "/tasks/"+task.ID)
	resp.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(resp, msg)
}

func (r *Resource) listTasks(req *restful.Request, resp *restful.Response) {
	tasks, err := r.reader.List(req.Request.Context())
	if err != nil {
		log.Printf("list tasks: %v", err)
		_ = resp.WriteErrorString(http.StatusInternalServerError, "could not list tasks")
		return
	}
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, toView(task))
	}
	_ = resp.WriteEntity(views)
}

func (r *Resource) getTask(req *restful.Request, resp *restful.Response) {
	id := req.PathParameter("id")
	task, err := r.reader.Get(req.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		_ = resp.WriteErrorString(http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		log.Printf("get task %s: %v", id, err)
		_ = resp.WriteErrorString(http.StatusInternalServerError, "could not get task")
		return
	}
	_ = resp.WriteEntity(toView(task))
}

func (r *Resource) deleteTask(req *restful.Request, resp *restful.Response) {
	id := req.PathParameter("id")
	if err := r.cancel(req.Request.Context(), id); err != nil {
		log.Printf("delete task %s: %v", id, err)
		_ = resp.WriteErrorString(http.StatusInternalServerError, "could not delete task")
		return
	}
	resp.WriteHeader(http.StatusNoContent)
}

func (r *Resource) sweepNow(req *restful.Request, resp *restful.Response) {
	res, ran, err := r.trigger.TriggerNow(req.Request.Context())
	if !ran {
		_ = resp.WriteErrorString(http.StatusConflict, "sweep already running")
		return
	}
	if err != nil {
		log.Printf("manual sweep: %v", err)
		_ = resp.WriteErrorString(http.StatusServiceUnavailable, "sweep failed")
		return
	}
	_ = resp.WriteEntity(SweepView{
		Due:          res.Due,
		Executed:     res.Executed,
		Failed:       res.Failed,
		DeleteFailed: res.DeleteFailed,
	})
}

func toView(task domain.Task) TaskView {
	return TaskView{
		ID:                task.ID,
		Username:          task.Username,
		Repo:              task.Repo,
		CommitID:          task.CommitID,
		Path:              task.Path,
		Endpoint:          task.Endpoint,
		ScheduleTime:      task.ScheduleTime.Local().Format(domain.ScheduleTimeLayout),
		AdditionalParams:  task.AdditionalParams,
		ShouldPostComment: task.ShouldPostComment,
	}
}
