package post

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"microblog/internal/auth"
	"microblog/internal/common"
	"microblog/internal/images"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// multipartOverhead leaves room for the form fields next to the image.
const multipartOverhead = 1 << 20

// errRequestTooLarge marks a multipart body cut off by the size cap.
var errRequestTooLarge = fmt.Errorf("%w: request too large", common.ErrValidation)

type PostController struct {
	postService   PostServiceInterface
	policy        *Policy
	maxImageBytes int64
}

// NewPostController uses policy for the limits it reports back to clients.
// It must be the policy the service enforces.
func NewPostController(postService PostServiceInterface, policy *Policy, maxImageBytes int64) *PostController {
	return &PostController{
		postService:   postService,
		policy:        policy,
		maxImageBytes: maxImageBytes,
	}
}

// ListPosts returns the feed newest first. Store failures still answer with
// an empty array.
func (pc *PostController) ListPosts(c *gin.Context) {
	posts, err := pc.postService.ListPosts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, []*Post{})
		return
	}
	c.JSON(http.StatusOK, posts)
}

// CreatePost accepts {content} as JSON, or a multipart form with content and
// an optional image file.
func (pc *PostController) CreatePost(c *gin.Context) {
	author, _ := auth.GetUsernameFromContext(c)

	content, fh, err := pc.readRequest(c)
	if err != nil {
		pc.respondError(c, err)
		return
	}

	// The image is only read once the post could otherwise be accepted, so
	// content errors win over image errors.
	var upload *images.Upload
	if fh != nil && author != "" && pc.contentValid(content) {
		if upload, err = images.ReadUpload(fh, pc.maxImageBytes); err != nil {
			pc.respondError(c, err)
			return
		}
	}

	post, err := pc.postService.CreatePost(c.Request.Context(), author, content, upload)
	if err != nil {
		pc.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (pc *PostController) contentValid(content string) bool {
	_, err := pc.policy.NormalizeContent(content)
	return err == nil
}

// readRequest extracts the raw content and image header. Malformed bodies
// yield empty content, which the policy rejects. A multipart body over the
// size cap is an error of its own.
func (pc *PostController) readRequest(c *gin.Context) (string, *multipart.FileHeader, error) {
	switch c.ContentType() {
	case gin.MIMEMultipartPOSTForm:
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, pc.maxImageBytes+multipartOverhead)
		form, err := c.MultipartForm()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", nil, errRequestTooLarge
			}
			logrus.WithError(err).Debug("Failed to parse multipart form")
			return "", nil, nil
		}
		var content string
		if values := form.Value["content"]; len(values) > 0 {
			content = values[0]
		}
		if files := form.File["image"]; len(files) > 0 {
			return content, files[0], nil
		}
		return content, nil, nil
	case gin.MIMEPOSTForm:
		return c.PostForm("content"), nil, nil
	default:
		var req struct {
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return "", nil, nil
		}
		return req.Content, nil, nil
	}
}

func (pc *PostController) respondError(c *gin.Context, err error) {
	var cooldown *common.CooldownError

	switch {
	case errors.Is(err, common.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
	case errors.Is(err, common.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "content required"})
	case errors.Is(err, common.ErrContentTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("content > %d chars", pc.policy.CharLimit)})
	case errors.Is(err, common.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image"})
	case errors.Is(err, errRequestTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": "request too large"})
	case errors.Is(err, common.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &cooldown):
		secs := cooldown.RemainingSeconds()
		c.Header("Retry-After", strconv.FormatInt(secs, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       cooldown.Error(),
			"retry_after": secs,
		})
	default:
		logrus.WithError(err).Error("Failed to create post")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
