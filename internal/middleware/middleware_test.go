package middleware

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecturemate/backend/internal/auth"
	"github.com/lecturemate/backend/internal/models"
)

func TestJWTAndRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := auth.NewJWTService("secret", 1)
	r := gin.New()
	r.Use(JWT(svc))
	r.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, UserID(c).String()+" "+string(Role(c))) })
	r.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	studentUser := &models.User{ID: uuid.New(), Email: "s@x.io", Role: models.RoleStudent}
	student, err := svc.Generate(studentUser)
	require.NoError(t, err)
	admin, err := svc.Generate(&models.User{ID: uuid.New(), Email: "a@x.io", Role: models.RoleAdmin})
	require.NoError(t, err)
	expired, err := auth.NewJWTService("secret", -1).Generate(studentUser)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic abc", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"expired token", "/me", "Bearer " + expired, http.StatusUnauthorized},
		{"student", "/me", "Bearer " + student, http.StatusOK},
		{"lowercase scheme", "/me", "bearer " + student, http.StatusOK},
		{"student on admin route", "/admin", "Bearer " + student, http.StatusForbidden},
		{"admin", "/admin", "Bearer " + admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.name == "student" {
				assert.Equal(t, studentUser.ID.String()+" student", w.Body.String())
			}
			if tt.name == "expired token" {
				assert.Contains(t, w.Body.String(), "token expired")
			}
		})
	}
}

func TestRequireRoleWithoutUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://localhost:5173/, https://lecturemate.app"))
	r.GET("/lectures/:id/export/pdf", func(c *gin.Context) {
		c.Header("Content-Disposition", `attachment; filename="notes.pdf"`)
		c.Status(http.StatusOK)
	})

	preflight := httptest.NewRequest(http.MethodOptions, "/lectures/1/export/pdf", nil)
	preflight.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, preflight)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.NotContains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
	assert.Equal(t, "Origin", w.Header().Get("Vary"))

	get := httptest.NewRequest(http.MethodGet, "/lectures/1/export/pdf", nil)
	get.Header.Set("Origin", "https://lecturemate.app")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, get)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://lecturemate.app", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"), "methods are only listed on preflight")

	stranger := httptest.NewRequest(http.MethodGet, "/lectures/1/export/pdf", nil)
	stranger.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, stranger)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("*"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://anywhere.test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// slowUpload streams a multipart body in chunks with a pause between them.
func slowUpload(t *testing.T, url string, chunks int, pause time.Duration) (*http.Response, error) {
	t.Helper()
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("audio", "lecture.mp3")
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		chunk := bytes.Repeat([]byte{0xff}, 1024)
		for i := 0; i < chunks; i++ {
			if _, err := part.Write(chunk); err != nil {
				pw.CloseWithError(err)
				return
			}
			time.Sleep(pause)
		}
		pw.CloseWithError(mw.Close())
	}()
	req, err := http.NewRequest(http.MethodPost, url, pr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return http.DefaultClient.Do(req)
}

func TestLongRequestOutlivesReadTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upload := func(c *gin.Context) {
		file, err := c.FormFile("audio")
		if err != nil {
			c.String(http.StatusBadRequest, "No audio file provided")
			return
		}
		c.String(http.StatusOK, "%d", file.Size)
	}
	r := gin.New()
	r.POST("/upload", LongRequest(10*time.Second, 10*time.Second), upload)
	r.POST("/plain", upload)

	srv := httptest.NewUnstartedServer(r)
	srv.Config.ReadTimeout = 200 * time.Millisecond
	srv.Start()
	defer srv.Close()

	resp, err := slowUpload(t, srv.URL+"/upload", 8, 100*time.Millisecond)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "8192", string(body))

	resp, err = slowUpload(t, srv.URL+"/plain", 8, 100*time.Millisecond)
	if err == nil {
		defer resp.Body.Close()
		assert.NotEqual(t, http.StatusOK, resp.StatusCode, "the server-wide timeout still applies elsewhere")
	}
}
