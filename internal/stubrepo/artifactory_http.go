// Copyright (C) 2023 Patrice Congo <@congop>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stubrepo

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/congop/artifactory-publish/internal/log"
)

// Deployed is an artifact received by the stub.
type Deployed struct {
	Path        string
	Content     []byte
	ContentType string
	Sha256      string // X-Checksum-Sha256 header value, if sent
}

type coordinates struct {
	repository   string
	organization string
	module       string
}

// ArtifactoryRepo is an in-memory stand-in for the parts of Artifactory the
// publisher talks to: artifact deploy (PUT), download (GET) and the
// latestVersion search api.
type ArtifactoryRepo struct {
	// VisibleAfter delays search visibility: the first VisibleAfter searches
	// for an artifact answer 404 as if the index was not updated yet.
	VisibleAfter int

	mu         sync.Mutex
	token      string
	deployed   map[string]*Deployed
	latest     map[coordinates]int
	searches   map[coordinates]int
	putCount   int
	ip         string
	port       uint16
	httpServer *http.Server
}

// NewArtifactoryRepo creates a stub requiring bearer token; a blank token disables auth.
func NewArtifactoryRepo(token string) *ArtifactoryRepo {
	return &ArtifactoryRepo{
		token:    token,
		deployed: map[string]*Deployed{},
		latest:   map[coordinates]int{},
		searches: map[coordinates]int{},
	}
}

func (repo *ArtifactoryRepo) BaseUrl() string {
	return fmt.Sprintf("http://%s:%d", repo.ip, repo.port)
}

func (repo *ArtifactoryRepo) Start() error {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.NoRoute(repo.NoRoute)

	addrStr := "localhost:0"
	ln, err := net.Listen("tcp", addrStr)
	if err != nil {
		return errors.Wrapf(
			err, "ArtifactoryRepo.Start -- fail to start listening at: addr=%s err=%v",
			addrStr, err)
	}
	addr := ln.Addr()
	srv := &http.Server{
		Addr:    addr.String(),
		Handler: engine,
	}
	repo.httpServer = srv
	go func() {
		log.Debugf(StubLogCtx(), "ArtifactoryRepo.Start -- serving at: addr=%v", addr)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Infof(StubLogCtx(), "ArtifactoryRepo.Start -- server stop serving: addr=%v, err=%+v", addr, err)
		}
	}()

	lIp, lPort, err := net.SplitHostPort(addr.String()) //revive:disable-line:var-naming
	if err != nil {
		return errors.Wrapf(err, "ArtifactoryRepo.Start -- fail to split host-port: addr=%v", addr)
	}
	lPortUint64, _ := strconv.ParseUint(lPort, 10, 16)

	repo.ip = lIp
	repo.port = uint16(lPortUint64)

	return nil
}

func (repo *ArtifactoryRepo) Close() error {
	if repo.httpServer == nil {
		return nil
	}
	srv := repo.httpServer
	repo.httpServer = nil

	return srv.Close()
}

// GivenDeployed seeds the stub as if module-version.bin had been published.
func (repo *ArtifactoryRepo) GivenDeployed(repository, organization, module string, version int, content []byte) {
	path := strings.Join([]string{repository, organization, module,
		module + "-" + strconv.Itoa(version) + ".bin"}, "/")
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.store(&Deployed{Path: path, Content: content, ContentType: "application/octet-stream"})
}

// Deployed returns the artifact stored at path, relative to /artifactory/.
func (repo *ArtifactoryRepo) Deployed(path string) (*Deployed, bool) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	d, avail := repo.deployed[strings.Trim(path, "/")]
	return d, avail
}

func (repo *ArtifactoryRepo) DeployedPaths() []string {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	paths := maps.Keys(repo.deployed)
	slices.Sort(paths)
	return paths
}

// PutCount returns the number of deploy requests received, accepted or not.
func (repo *ArtifactoryRepo) PutCount() int {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	return repo.putCount
}

func (repo *ArtifactoryRepo) NoRoute(ginCtx *gin.Context) {
	method := ginCtx.Request.Method
	resPath := ginCtx.Request.URL.Path
	log.Debugf(StubLogCtx(), "ArtifactoryRepo.NoRoute -- request: method=%s resPath=%s", method, resPath)

	switch {
	case method == http.MethodGet && resPath == "/artifactory/api/search/latestVersion":
		repo.LatestVersion(ginCtx)
	case method == http.MethodPut && strings.HasPrefix(resPath, "/artifactory/"):
		repo.Put(ginCtx)
	case method == http.MethodGet && strings.HasPrefix(resPath, "/artifactory/"):
		repo.Get(ginCtx)
	default:
		ginCtx.Status(http.StatusNotFound)
	}
}

func (repo *ArtifactoryRepo) authorized(ginCtx *gin.Context) bool {
	if repo.token == "" {
		return true
	}
	if ginCtx.GetHeader("Authorization") == "Bearer "+repo.token {
		return true
	}
	ginCtx.Data(http.StatusUnauthorized, "application/json",
		[]byte(`{"errors":[{"status":401,"message":"Bad credentials"}]}`))
	return false
}

func (repo *ArtifactoryRepo) Put(ginCtx *gin.Context) {
	repo.mu.Lock()
	repo.putCount++
	repo.mu.Unlock()

	if !repo.authorized(ginCtx) {
		return
	}
	path := strings.Trim(strings.TrimPrefix(ginCtx.Request.URL.Path, "/artifactory/"), "/")
	if _, ok := parseArtifactPath(path); !ok {
		ginCtx.Data(http.StatusBadRequest, "application/json",
			[]byte(`{"errors":[{"status":400,"message":"Unexpected artifact path"}]}`))
		return
	}
	content, err := io.ReadAll(ginCtx.Request.Body)
	if err != nil {
		log.Errorf(StubLogCtx(), "ArtifactoryRepo.Put -- fail to read body: path=%s err=%+v", path, err)
		ginCtx.Status(http.StatusInternalServerError)
		return
	}
	repo.mu.Lock()
	repo.store(&Deployed{
		Path:        path,
		Content:     content,
		ContentType: ginCtx.GetHeader("Content-Type"),
		Sha256:      ginCtx.GetHeader("X-Checksum-Sha256"),
	})
	repo.mu.Unlock()

	ginCtx.JSON(http.StatusCreated, gin.H{
		"repo":        strings.SplitN(path, "/", 2)[0],
		"path":        "/" + strings.SplitN(path, "/", 2)[1],
		"downloadUri": repo.BaseUrl() + "/artifactory/" + path,
		"size":        strconv.Itoa(len(content)),
	})
}

func (repo *ArtifactoryRepo) Get(ginCtx *gin.Context) {
	if !repo.authorized(ginCtx) {
		return
	}
	d, avail := repo.Deployed(strings.TrimPrefix(ginCtx.Request.URL.Path, "/artifactory/"))
	if !avail {
		ginCtx.Data(http.StatusNotFound, "application/json",
			[]byte(`{"errors":[{"status":404,"message":"File not found."}]}`))
		return
	}
	ginCtx.Data(http.StatusOK, "application/octet-stream", d.Content)
}

func (repo *ArtifactoryRepo) LatestVersion(ginCtx *gin.Context) {
	if !repo.authorized(ginCtx) {
		return
	}
	coord := coordinates{
		repository:   ginCtx.Query("repos"),
		organization: ginCtx.Query("g"),
		module:       ginCtx.Query("a"),
	}

	repo.mu.Lock()
	repo.searches[coord]++
	searchCount := repo.searches[coord]
	version, avail := repo.latest[coord]
	repo.mu.Unlock()

	if !avail || searchCount <= repo.VisibleAfter {
		ginCtx.Data(http.StatusNotFound, "application/json",
			[]byte(`{"errors":[{"status":404,"message":"Unable to find artifact versions"}]}`))
		return
	}
	ginCtx.Data(http.StatusOK, "text/plain", []byte(strconv.Itoa(version)))
}

// store must be called with mu held.
func (repo *ArtifactoryRepo) store(d *Deployed) {
	repo.deployed[d.Path] = d
	if coord, version, ok := versionOf(d.Path); ok {
		if latest, avail := repo.latest[coord]; !avail || version > latest {
			repo.latest[coord] = version
		}
	}
}

// parseArtifactPath splits <repository>/<organization...>/<module>/<file>.
func parseArtifactPath(path string) (coordinates, bool) {
	parts := strings.Split(path, "/")
	if len(parts) < 4 {
		return coordinates{}, false
	}
	return coordinates{
		repository:   parts[0],
		organization: strings.Join(parts[1:len(parts)-2], "/"),
		module:       parts[len(parts)-2],
	}, true
}

func versionOf(path string) (coordinates, int, bool) {
	coord, ok := parseArtifactPath(path)
	if !ok {
		return coordinates{}, 0, false
	}
	file := path[strings.LastIndex(path, "/")+1:]
	versionStr := strings.TrimSuffix(strings.TrimPrefix(file, coord.module+"-"), ".bin")
	version, err := strconv.Atoi(versionStr)
	if err != nil || !strings.HasSuffix(file, ".bin") {
		return coordinates{}, 0, false
	}
	return coord, version, true
}
