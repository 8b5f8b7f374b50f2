package api

import (
	"database/sql"
	"net/http"

	"github.com/justinas/alice"
	"github.com/rs/cors"

	"github.com/unilost/lostfound/internal/imagestore"
	"github.com/unilost/lostfound/internal/model"
	"github.com/unilost/lostfound/internal/revocation"
)

// Options configures the API router.
type Options struct {
	JWTSecret            string
	Revoker              revocation.Revoker
	Images               imagestore.Store
	Policy               model.Policy
	OwnerCanMarkReturned bool
	SecureCookies        bool
	AllowedOrigins       []string
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, opts Options) http.Handler {
	mux := http.NewServeMux()

	authn := &Authenticator{DB: db, Secret: opts.JWTSecret, Revoker: opts.Revoker}
	authHandler := &AuthHandler{DB: db, JWTSecret: opts.JWTSecret, Revoker: opts.Revoker, SecureCookies: opts.SecureCookies}
	itemsHandler := &ItemsHandler{DB: db, Images: opts.Images, OwnerCanMarkReturned: opts.OwnerCanMarkReturned}
	imagesHandler := &ImagesHandler{DB: db, Images: opts.Images}
	adminHandler := &AdminHandler{DB: db, Images: opts.Images}
	usersHandler := &UsersHandler{DB: db}
	messagesHandler := &MessagesHandler{DB: db}

	authed := alice.New(authn.Require)
	moderator := authed.Append(RequirePermission(opts.Policy, model.PermModerate, "admin access required"))
	superAdmin := authed.Append(RequirePermission(opts.Policy, model.PermManageRoles, "super admin access required"))

	// Public.
	mux.Handle("GET /api/health", &healthHandler{DB: db})
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/items/search", itemsHandler.Search)
	mux.HandleFunc("GET /api/items/recent", itemsHandler.Recent)
	mux.HandleFunc("GET /api/items/categories", itemsHandler.Categories)
	mux.HandleFunc("GET /api/items/locations", itemsHandler.Locations)
	mux.HandleFunc("GET /api/items/{id}", itemsHandler.Get)
	mux.HandleFunc("GET /api/stats", itemsHandler.Stats)
	mux.HandleFunc("GET "+imagestore.ServePath+"{key}", imagesHandler.Serve)

	// Account.
	mux.Handle("GET /api/auth/me", authed.ThenFunc(authHandler.Me))
	mux.Handle("PUT /api/auth/password", authed.ThenFunc(authHandler.ChangePassword))

	// Reporting and owner views.
	mux.Handle("POST /api/items", authed.ThenFunc(itemsHandler.Create))
	mux.Handle("POST /api/uploads/images", authed.ThenFunc(imagesHandler.Upload))
	mux.Handle("GET /api/user/items", authed.ThenFunc(itemsHandler.ListMine))
	mux.Handle("GET /api/user/items/{id}", authed.ThenFunc(itemsHandler.GetMine))
	mux.Handle("PUT /api/user/items/{id}", authed.ThenFunc(itemsHandler.UpdateMine))
	mux.Handle("DELETE /api/user/items/{id}", authed.ThenFunc(itemsHandler.DeleteMine))
	mux.Handle("POST /api/user/items/{id}/returned", authed.ThenFunc(itemsHandler.MarkReturned))
	mux.Handle("GET /api/user/stats", authed.ThenFunc(itemsHandler.UserStats))

	// Messaging.
	mux.Handle("POST /api/messages", authed.ThenFunc(messagesHandler.Send))
	mux.Handle("GET /api/messages/conversations", authed.ThenFunc(messagesHandler.Conversations))
	mux.Handle("GET /api/messages/conversation/{itemId}", authed.ThenFunc(messagesHandler.Conversation))
	mux.Handle("POST /api/messages/mark-read/{itemId}", authed.ThenFunc(messagesHandler.MarkRead))
	mux.Handle("GET /api/messages/unread-count", authed.ThenFunc(messagesHandler.UnreadCount))
	mux.Handle("GET /api/messages/item-details/{itemId}", authed.ThenFunc(messagesHandler.ItemDetails))

	// Moderation.
	mux.Handle("GET /api/admin/stats", moderator.ThenFunc(adminHandler.Stats))
	mux.Handle("GET /api/admin/pending-items", moderator.ThenFunc(adminHandler.Pending))
	mux.Handle("GET /api/admin/approved-items", moderator.ThenFunc(adminHandler.Approved))
	mux.Handle("POST /api/admin/item-action", moderator.ThenFunc(adminHandler.ItemAction))

	// Roles.
	mux.Handle("GET /api/super-admin/users", superAdmin.ThenFunc(usersHandler.List))
	mux.Handle("PUT /api/super-admin/users/{id}/role", superAdmin.ThenFunc(usersHandler.SetRole))

	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	return alice.New(recoverPanic, logRequest, secureHeaders, c.Handler).Then(mux)
}
