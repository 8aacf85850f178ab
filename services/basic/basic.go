package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"

	"github.com/spinal-tech/spinal/core"
	"github.com/spinal-tech/spinal/core/access"
	"github.com/spinal-tech/spinal/core/csql"
	"github.com/spinal-tech/spinal/core/descriptor"
	"github.com/spinal-tech/spinal/core/generic"
	"github.com/spinal-tech/spinal/core/logger"
	"github.com/spinal-tech/spinal/core/notify"
	"github.com/spinal-tech/spinal/core/rest"
	"github.com/spinal-tech/spinal/core/routing"
	"github.com/spinal-tech/spinal/core/store"
)

//go:embed models routes
var serviceFS embed.FS

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres password=docker dbname=postgres sslmode=disable"
type Service struct {
	Postgres     string        `env:"POSTGRES,required" description:"the connection string for the Postgres DB"`
	Schema       string        `env:"SCHEMA,default=basic" description:"the database schema"`
	Redis        string        `env:"REDIS,default=" description:"optional redis address for the token store"`
	Port         string        `env:"PORT,default=3000" description:"the port to listen on"`
	JWTSecret    string        `env:"JWT_SECRET,required" description:"the HMAC secret for login credentials"`
	TokenExpiry  time.Duration `env:"TOKEN_EXPIRY,default=2h" description:"the sliding token expiration window"`
	KafkaBrokers string        `env:"KAFKA_BROKERS,default=" description:"optional comma separated kafka brokers for mutation events"`
	KafkaTopic   string        `env:"KAFKA_TOPIC,default=spinal-mutations" description:"the kafka topic for mutation events"`
	LogLevel     string        `env:"LOG_LEVEL,default=debug" description:"the log level"`
}

// credentialClaims is the signed identity a client exchanges for a token.
type credentialClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}

	level, err := logrus.ParseLevel(service.LogLevel)
	if err != nil {
		level = logrus.DebugLevel
	}
	logger.Init(level)
	rlog := logger.Default()

	db := csql.OpenWithSchema(service.Postgres, service.Schema)
	defer db.Close()

	validator, err := descriptor.NewValidator()
	if err != nil {
		panic(err)
	}
	models := descriptor.NewRegistry()
	descriptors, err := descriptor.LoadDir(serviceFS, "models", validator, models)
	if err != nil {
		panic(err)
	}

	pg := store.NewPostgres(db)
	for _, d := range descriptors {
		if err := pg.Mount(d); err != nil {
			panic(err)
		}
	}

	notifier := newNotifier(service, rlog)

	tokens, err := newTokenStore(service, db, pg)
	if err != nil {
		panic(err)
	}
	roles, err := access.NewSQLRoleStore(db)
	if err != nil {
		panic(err)
	}

	auth, err := access.New(access.Config{
		Expiry: service.TokenExpiry,
		Allow:  []string{"~^/health$"},
		Rules: []access.Rule{
			{Pattern: "/admin/*", Role: "admin"},
		},
		Tokens: tokens,
		Roles:  roles,
	})
	if err != nil {
		panic(err)
	}

	router := mux.NewRouter()
	logger.AddRequestID(router)
	router.Use(auth.Middleware())

	registry := routing.NewHandlerRegistry().
		Handler("home", homeHandler).
		Handler("health", healthHandler).
		Handler("login", loginHandler(service, pg)).
		Handler("register", registerHandler(service, pg)).
		Handler("logout", logoutHandler).
		Handler("stats", statsHandler(pg))

	loader := &routing.Loader{
		Handlers: registry,
		MountModel: func(model string, sub *mux.Router) error {
			d, ok := models.Lookup(model)
			if !ok {
				return fmt.Errorf("unknown model %q", model)
			}
			return generic.Synthesize(sub, d, generic.Options{
				Store:    pg,
				Models:   models,
				Notifier: notifier,
			})
		},
	}
	units, err := routing.Discover(serviceFS, "routes", loader)
	if err != nil {
		panic(err)
	}
	binder := routing.Binder{Router: router}
	binder.Bind(units)

	handler := handlers.LoggingHandler(rlog.Writer(), router)
	handler = handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type", "token"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
	)(handler)

	rlog.Infoln("listen on port :" + service.Port)
	rlog.Fatal(http.ListenAndServe(":"+service.Port, handler))
}

func newNotifier(service *Service, rlog *logrus.Entry) core.Notifier {
	if service.KafkaBrokers == "" {
		return notify.LogNotifier{}
	}
	brokers := strings.Split(service.KafkaBrokers, ",")
	rlog.Infoln("mutation events to kafka topic", service.KafkaTopic)
	return notify.NewKafkaNotifier(brokers, service.KafkaTopic)
}

func newTokenStore(service *Service, db *csql.DB, pg *store.Postgres) (access.TokenStore, error) {
	loadOwner := func(ctx context.Context, ownerID string) (map[string]any, error) {
		record, err := pg.FindByID(ctx, "user", ownerID)
		if err != nil {
			return nil, err
		}
		delete(record, "password")
		return record, nil
	}
	if service.Redis == "" {
		return access.NewSQLTokenStore(db, loadOwner)
	}
	client := redis.NewClient(&redis.Options{Addr: service.Redis})
	return access.NewRedisTokenStore(client, access.DefaultKeyPrefix), nil
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	rest.OK(w, map[string]any{"service": "basic", "status": "up"})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	rest.OK(w, map[string]any{"healthy": true})
}

// loginHandler exchanges a signed credential for an API token. The user
// record is created on first login.
func loginHandler(service *Service, pg *store.Postgres) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := parseCredential(service, r)
		if err != nil {
			rest.Unauthorized(w, "invalid credential")
			return
		}
		ctx := r.Context()
		record, err := pg.Find(ctx, "user", store.Filter{"email": claims.Email})
		if errors.Is(err, store.ErrNotFound) {
			payload := store.Record{
				"email":    claims.Email,
				"name":     claims.Name,
				"password": access.GenerateCode(),
			}
			record, err = pg.Create(ctx, "user", payload)
		}
		if err != nil {
			rest.Storage(w, logger.FromContext(ctx), err)
			return
		}
		issueToken(w, r, record)
	}
}

// registerHandler creates a user from an explicit payload and logs it in.
func registerHandler(service *Service, pg *store.Postgres) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := parseCredential(service, r)
		if err != nil {
			rest.Unauthorized(w, "invalid credential")
			return
		}
		ctx := r.Context()
		payload := store.Record{
			"email":    claims.Email,
			"name":     claims.Name,
			"password": access.GenerateCode(),
		}
		record, err := pg.Create(ctx, "user", payload)
		if err != nil {
			rest.Storage(w, logger.FromContext(ctx), err)
			return
		}
		issueToken(w, r, record)
	}
}

func logoutHandler(w http.ResponseWriter, r *http.Request) {
	session := access.SessionFromContext(r.Context())
	if session == nil {
		rest.OK(w, map[string]any{"logout": true})
		return
	}
	if err := session.Logout(r.Context()); err != nil {
		rest.Unknown(w, "cannot log out")
		return
	}
	rest.OK(w, map[string]any{"logout": true})
}

// statsHandler is only reachable with the admin role.
func statsHandler(pg *store.Postgres) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		users, err := pg.Count(ctx, "user", nil)
		if err != nil {
			rest.Storage(w, logger.FromContext(ctx), err)
			return
		}
		notes, err := pg.Count(ctx, "note", nil)
		if err != nil {
			rest.Storage(w, logger.FromContext(ctx), err)
			return
		}
		rest.OK(w, map[string]any{"users": users, "notes": notes})
	}
}

func parseCredential(service *Service, r *http.Request) (*credentialClaims, error) {
	var body struct {
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	claims := &credentialClaims{}
	_, err := jwt.ParseWithClaims(body.Credential, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(service.JWTSecret), nil
		})
	if err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("credential lacks an email")
	}
	return claims, nil
}

func issueToken(w http.ResponseWriter, r *http.Request, record store.Record) {
	session := access.SessionFromContext(r.Context())
	if session == nil {
		rest.Unknown(w, "no session")
		return
	}
	id, _ := record["user_id"].(string)
	delete(record, "password")
	token, err := session.Login(r.Context(), &access.Owner{ID: id, Record: record})
	if err != nil {
		rest.Unknown(w, "cannot issue token")
		return
	}
	rest.OK(w, token)
}
