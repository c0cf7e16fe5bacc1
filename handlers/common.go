package handlers

import (
	"strconv"

	"github.com/KBesada24/test-suite-manager/store"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/fiber/v2"
)

// parseBody decodes and validates the JSON body into req
func parseBody(c *fiber.Ctx, req interface{}) error {
	if result := utils.ValidateJSON(c, req); !result.IsValid {
		return utils.FieldErrors(result.Details())
	}
	return nil
}

// idParam reads a positive integer route parameter
func idParam(c *fiber.Ctx, name string) (int, error) {
	id, err := strconv.Atoi(c.Params(name))
	if err != nil || id < 1 {
		return 0, utils.FieldErrors{name: "Must be a positive integer"}
	}
	return id, nil
}

// childParam reads the optional childId parameter. Routes without it address
// the suite's own test cases.
func childParam(c *fiber.Ctx) (int, error) {
	if c.Params("childId") == "" {
		return store.NoChild, nil
	}
	return idParam(c, "childId")
}

// caseLocation resolves the suite, child and test case ids of a test case route
func caseLocation(c *fiber.Ctx) (suiteID, childID, caseID int, err error) {
	if suiteID, err = idParam(c, "suiteId"); err != nil {
		return
	}
	if childID, err = childParam(c); err != nil {
		return
	}
	caseID, err = idParam(c, "caseId")
	return
}
