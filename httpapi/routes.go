package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mritob/authgate/federation"
	"github.com/mritob/authgate/middleware/gateware"
)

// Route paths. The visibility table and the registrations below must
// agree, so both are derived from these constants.
const (
	PathFederatedStart    = "/auth/federated-start"
	PathFederatedCallback = "/auth/federated-callback"
	PathPendingProfile    = "/auth/pending-profile"
	PathConfirm           = "/auth/confirm"
	PathSignup            = "/auth/signup"
	PathSignin            = "/auth/signin"
	PathSignout           = "/auth/signout"
	PathAvatar            = "/auth/avatar"
	PathMe                = "/auth/me"
)

// RouteTable declares route visibility for the gate. Everything not
// listed here is protected, so a new route is locked down until it is
// deliberately opened up.
func RouteTable() gateware.Table {
	return gateware.Table{
		gateware.RouteKey(fiber.MethodGet, PathFederatedStart):    gateware.Public,
		gateware.RouteKey(fiber.MethodGet, PathFederatedCallback): gateware.Public,
		gateware.RouteKey(fiber.MethodGet, PathPendingProfile):    gateware.Public,
		gateware.RouteKey(fiber.MethodPost, PathConfirm):          gateware.Public,
		gateware.RouteKey(fiber.MethodPost, PathSignup):           gateware.Public,
		gateware.RouteKey(fiber.MethodPost, PathSignin):           gateware.Public,
		gateware.RouteKey(fiber.MethodGet, PathSignout):           gateware.Public,
		gateware.RouteKey(fiber.MethodPost, PathAvatar):           gateware.Public,
	}
}

// RegisterRoutes mounts the credential routes plus the federated entry
// pair on the app.
func RegisterRoutes(app fiber.Router, controller *Controller, guard *federation.EntryGuard) {
	app.Get(PathFederatedStart, guard.Start)
	app.Get(PathFederatedCallback, guard.Callback)

	app.Get(PathPendingProfile, controller.PendingProfile)
	app.Post(PathConfirm, controller.Confirm)

	app.Post(PathSignup, controller.Signup)
	app.Post(PathSignin, controller.Signin)
	app.Get(PathSignout, controller.Signout)

	app.Post(PathAvatar, controller.Avatar)
	app.Get(PathMe, controller.Me)
}
