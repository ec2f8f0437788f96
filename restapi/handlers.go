package restapi

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/slots"
)

type handlers struct {
	Services
}

type copyRequest struct {
	Source      string `json:"source" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

type cacheItem struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires" binding:"required"`
}

type logRequest struct {
	Type       string            `json:"type" binding:"required"`
	Content    string            `json:"content"`
	Meta       map[string]string `json:"meta"`
	StackTrace string            `json:"stack_trace"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

func (h *handlers) register(m *Methods) {
	if h.Files != nil {
		m.RegisterMethod(GET, "/files", h.loadFile)
		m.RegisterMethod(PUT, "/files", h.saveFile)
		m.RegisterMethod(DELETE, "/files", h.deleteFile)
		m.RegisterMethod(GET, "/files/exists", h.fileExists)
		m.RegisterMethod(GET, "/files/list", h.listFiles)
		m.RegisterMethod(POST, "/files/copy", h.copyFile)
		m.RegisterMethod(POST, "/files/move", h.moveFile)
	}
	if h.Folders != nil {
		m.RegisterMethod(POST, "/folders", h.createFolder)
		m.RegisterMethod(DELETE, "/folders", h.deleteFolder)
		m.RegisterMethod(GET, "/folders/exists", h.folderExists)
		m.RegisterMethod(GET, "/folders/list", h.listFolders)
		m.RegisterMethod(POST, "/folders/copy", h.copyFolder)
		m.RegisterMethod(POST, "/folders/move", h.moveFolder)
	}
	if h.Streams != nil {
		m.RegisterMethod(GET, "/streams", h.openStream)
		m.RegisterMethod(PUT, "/streams", h.saveStream)
	}
	if h.Cache != nil {
		m.RegisterMethod(GET, "/cache", h.cacheItems)
		m.RegisterMethod(DELETE, "/cache", h.clearCache)
		m.RegisterMethod(GET, "/cache/item", h.getCacheItem)
		m.RegisterMethod(PUT, "/cache/item", h.upsertCacheItem)
		m.RegisterMethod(DELETE, "/cache/item", h.removeCacheItem)
	}
	if h.Logger != nil {
		m.RegisterMethod(POST, "/log", h.writeLog)
	}
	if h.LogQuery != nil {
		m.RegisterMethod(GET, "/log", h.queryLog)
		m.RegisterMethod(GET, "/log/count", h.countLog)
		m.RegisterMethod(GET, "/log/timeshift", h.timeshift)
		m.RegisterMethod(GET, "/log/types", h.logTypes)
		m.RegisterMethod(GET, "/log/capabilities", h.logCapabilities)
		m.RegisterMethod(GET, "/log/items/:id", h.getLog)
	}
	if h.Signaler != nil {
		m.RegisterMethod(POST, "/slots/:name", h.signal)
	}
}

func boolQuery(c *gin.Context, name string) bool {
	b, _ := strconv.ParseBool(c.Query(name))
	return b
}

func (h *handlers) loadFile(c *gin.Context) {
	content, err := h.Files.LoadBinary(c.Request.Context(), c.Query("path"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", content)
}

func (h *handlers) saveFile(c *gin.Context) {
	content, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err := h.Files.SaveBinary(c.Request.Context(), c.Query("path"), content); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) deleteFile(c *gin.Context) {
	if err := h.Files.Delete(c.Request.Context(), c.Query("path")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) fileExists(c *gin.Context) {
	ok, err := h.Files.Exists(c.Request.Context(), c.Query("path"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": ok})
}

func (h *handlers) listFiles(c *gin.Context) {
	list := h.Files.ListFiles
	if boolQuery(c, "recursive") {
		list = h.Files.ListFilesRecursively
	}
	files, err := list(c.Request.Context(), c.Query("folder"), c.Query("extension"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(files))
}

func (h *handlers) copyFile(c *gin.Context) {
	h.copyMove(c, h.Files.Copy)
}

func (h *handlers) moveFile(c *gin.Context) {
	h.copyMove(c, h.Files.Move)
}

func (h *handlers) createFolder(c *gin.Context) {
	if err := h.Folders.Create(c.Request.Context(), c.Query("path")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) deleteFolder(c *gin.Context) {
	if err := h.Folders.Delete(c.Request.Context(), c.Query("path")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) folderExists(c *gin.Context) {
	ok, err := h.Folders.Exists(c.Request.Context(), c.Query("path"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": ok})
}

func (h *handlers) listFolders(c *gin.Context) {
	list := h.Folders.ListFolders
	if boolQuery(c, "recursive") {
		list = h.Folders.ListFoldersRecursively
	}
	folders, err := list(c.Request.Context(), c.Query("folder"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(folders))
}

func (h *handlers) copyFolder(c *gin.Context) {
	h.copyMove(c, h.Folders.Copy)
}

func (h *handlers) moveFolder(c *gin.Context) {
	h.copyMove(c, h.Folders.Move)
}

func (h *handlers) copyMove(c *gin.Context, op func(ctx context.Context, source string, destination string) error) {
	var req copyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err := op(c.Request.Context(), req.Source, req.Destination); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) openStream(c *gin.Context) {
	r, err := h.Streams.OpenFile(c.Request.Context(), c.Query("path"))
	if err != nil {
		fail(c, err)
		return
	}
	defer r.Close()
	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/octet-stream")
	io.Copy(c.Writer, r)
}

func (h *handlers) saveStream(c *gin.Context) {
	if err := h.Streams.SaveFile(c.Request.Context(), c.Request.Body, c.Query("path"), boolQuery(c, "overwrite")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) cacheItems(c *gin.Context) {
	items, err := h.Cache.Items(c.Request.Context(), c.Query("filter"), boolQuery(c, "hidden"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(items))
}

func (h *handlers) clearCache(c *gin.Context) {
	if err := h.Cache.Clear(c.Request.Context(), c.Query("filter"), boolQuery(c, "hidden")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) getCacheItem(c *gin.Context) {
	key := c.Query("key")
	v, ok, err := h.Cache.Get(c.Request.Context(), key, boolQuery(c, "hidden"))
	if err != nil {
		fail(c, err)
		return
	}
	if !ok {
		fail(c, cqldata.Errorf(cqldata.NotFound, "no cache item '%s'", key))
		return
	}
	c.JSON(http.StatusOK, cqldata.KeyValuePair[string, string]{Key: key, Value: v})
}

func (h *handlers) upsertCacheItem(c *gin.Context) {
	var item cacheItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err := h.Cache.Upsert(c.Request.Context(), c.Query("key"), item.Value, item.Expires.UTC(), boolQuery(c, "hidden")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) removeCacheItem(c *gin.Context) {
	if err := h.Cache.Remove(c.Request.Context(), c.Query("key"), boolQuery(c, "hidden")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) writeLog(c *gin.Context) {
	var req logRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	ctx := c.Request.Context()
	var err error
	switch req.Type {
	case "debug":
		err = h.Logger.Debug(ctx, req.Content, req.Meta)
	case "info":
		err = h.Logger.Info(ctx, req.Content, req.Meta)
	case "error":
		err = h.Logger.Error(ctx, req.Content, req.Meta, req.StackTrace)
	case "fatal":
		err = h.Logger.Fatal(ctx, req.Content, req.Meta, req.StackTrace)
	default:
		err = cqldata.Errorf(cqldata.PreconditionFailed, "unknown log type '%s'", req.Type)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) queryLog(c *gin.Context) {
	max, _ := strconv.Atoi(c.Query("max"))
	entries, err := h.LogQuery.Query(c.Request.Context(), max, c.Query("from"), c.Query("content"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(entries))
}

func (h *handlers) countLog(c *gin.Context) {
	n, err := h.LogQuery.Count(c.Request.Context(), c.Query("content"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, countResponse{Count: n})
}

func (h *handlers) getLog(c *gin.Context) {
	entry, err := h.LogQuery.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *handlers) timeshift(c *gin.Context) {
	days, err := h.LogQuery.Timeshift(c.Request.Context(), c.Query("content"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(days))
}

func (h *handlers) logTypes(c *gin.Context) {
	types, err := h.LogQuery.Types(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(types))
}

func (h *handlers) logCapabilities(c *gin.Context) {
	c.JSON(http.StatusOK, h.LogQuery.Capabilities())
}

// signal invokes the named slot on the posted node and returns the node it produced.
func (h *handlers) signal(c *gin.Context) {
	var node slots.Node
	if err := c.ShouldBindJSON(&node); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	name := c.Param("name")
	if node.Name == "" {
		node.Name = name
	}
	if err := h.Signaler.Signal(c.Request.Context(), name, &node); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, &node)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
