package service

import (
	"net/http"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"
)

// Acceptance exercises the whole v1 table surface through apiRequest,
// independently of the transport wiring.
func Acceptance(a *biff.A, apiRequest func(method, path string) *apitest.Request) {

	a.Alternative("Insert row on not existing table", func(a *biff.A) {

		resp := apiRequest("POST", "/tables/players:insert").
			WithBodyJson(JSON{
				"row":       JSON{"id": "1", "name": "Alfonso", "team": "red", "score": 30},
				"returnRow": true,
			}).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)
		biff.AssertEqualJson(resp.BodyJson(), JSON{
			"data":  []JSON{{"id": "1", "name": "Alfonso", "team": "red", "score": 30}},
			"count": 1,
		})

		a.Alternative("Get table", func(a *biff.A) {
			resp := apiRequest("GET", "/tables/players").Do()

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"name":  "players",
				"total": 1,
			})
		})

		a.Alternative("List tables", func(a *biff.A) {
			resp := apiRequest("GET", "/tables").Do()

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), []JSON{
				{"name": "players", "total": 1},
			})
		})

		a.Alternative("Insert duplicate", func(a *biff.A) {
			resp := apiRequest("POST", "/tables/players:insert").
				WithBodyJson(JSON{
					"row": JSON{"id": "1"},
				}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusConflict)
		})

		a.Alternative("Update row", func(a *biff.A) {
			resp := apiRequest("POST", "/tables/players:update").
				WithBodyJson(JSON{
					"row":       JSON{"id": "1", "score": 31},
					"returnRow": true,
				}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"data":  []JSON{{"id": "1", "name": "Alfonso", "team": "red", "score": 31}},
				"count": 1,
			})
		})

		a.Alternative("Update row - projected columns", func(a *biff.A) {
			resp := apiRequest("POST", "/tables/players:update").
				WithBodyJson(JSON{
					"row":       JSON{"id": "1", "score": 31},
					"returnRow": true,
					"columns":   []string{"id", "score"},
				}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"data":  []JSON{{"id": "1", "score": 31}},
				"count": 1,
			})
		})

		a.Alternative("Remove row", func(a *biff.A) {
			resp := apiRequest("POST", "/tables/players:remove").
				WithBodyJson(JSON{
					"row": JSON{"id": "1"},
				}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), JSON{
				"data":  []JSON{},
				"count": 1,
			})

			a.Alternative("Remove it twice", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/players:remove").
					WithBodyJson(JSON{
						"row": JSON{"id": "1"},
					}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
			})
		})

		a.Alternative("Select rows", func(a *biff.A) {

			apiRequest("POST", "/tables/players:insert").
				WithBodyJson(JSON{"row": JSON{"id": "2", "name": "Gerardo", "team": "blue", "score": 10}}).Do()
			apiRequest("POST", "/tables/players:insert").
				WithBodyJson(JSON{"row": JSON{"id": "3", "name": "Alfonso", "team": "blue", "score": 20}}).Do()

			a.Alternative("All rows", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/players:selectRows").
					WithBodyJson(JSON{}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				body := resp.BodyJson().(JSON)
				biff.AssertEqual(len(body["data"].([]interface{})), 3)
			})

			a.Alternative("Filter with exact count", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/players:selectRows").
					WithBodyJson(JSON{
						"filter":    JSON{"name": "Alfonso"},
						"countMode": "exact",
						"columns":   []string{"id"},
					}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), JSON{
					"data":  []JSON{{"id": "1"}, {"id": "3"}},
					"count": 2,
				})
			})

			a.Alternative("Order and pagination", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/players:selectRows").
					WithBodyJson(JSON{
						"orderBy":   []JSON{{"name": "score", "descending": true}},
						"skip":      1,
						"limit":     1,
						"countMode": "exact",
						"columns":   []string{"id"},
					}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), JSON{
					"data":  []JSON{{"id": "3"}},
					"count": 3,
				})
			})

			a.Alternative("Flexible update", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/players:flexible").
					WithBodyJson(JSON{
						"operation":  "update",
						"payload":    JSON{"score": 0},
						"filter":     JSON{"team": "blue"},
						"fetchAfter": true,
					}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				body := resp.BodyJson().(JSON)
				biff.AssertEqualJson(body["count"], 2)
				for _, row := range body["data"].([]interface{}) {
					biff.AssertEqualJson(row.(JSON)["score"], 0)
				}
			})

			a.Alternative("Flexible delete", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/players:flexible").
					WithBodyJson(JSON{
						"operation": "delete",
						"filter":    JSON{"team": "blue"},
					}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(resp.BodyJson(), JSON{
					"data":  []JSON{},
					"count": 2,
				})

				resp = apiRequest("GET", "/tables/players").Do()
				biff.AssertEqualJson(resp.BodyJson(), JSON{
					"name":  "players",
					"total": 1,
				})
			})

			a.Alternative("Flexible invalid settings", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/players:flexible").
					WithBodyJson(JSON{
						"operation": "update",
						"payload":   JSON{"score": 0},
						// filter missing
					}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
			})
		})

		a.Alternative("Drop table", func(a *biff.A) {
			resp := apiRequest("POST", "/tables/players:dropTable").Do()

			biff.AssertEqual(resp.StatusCode, http.StatusOK)

			a.Alternative("Get dropped table", func(a *biff.A) {
				resp := apiRequest("GET", "/tables/players").Do()

				biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
			})
		})
	})

	a.Alternative("Update on not existing table", func(a *biff.A) {
		resp := apiRequest("POST", "/tables/ghosts:update").
			WithBodyJson(JSON{
				"row": JSON{"id": "1"},
			}).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
		errorMessage := resp.BodyJson().(JSON)["error"].(JSON)["message"].(string)
		biff.AssertEqual(errorMessage, "table not found: 'ghosts'")
	})

	a.Alternative("Call procedure", func(a *biff.A) {
		resp := apiRequest("POST", "/procedures/ping:call").Do()

		biff.AssertEqual(resp.StatusCode, http.StatusOK)
		biff.AssertEqualJson(resp.BodyJson(), JSON{
			"data":  []JSON{{"result": "pong"}},
			"count": nil,
		})
	})

	a.Alternative("Call not existing procedure", func(a *biff.A) {
		resp := apiRequest("POST", "/procedures/explode:call").Do()

		biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
	})

	a.Alternative("Malformed body", func(a *biff.A) {
		resp := apiRequest("POST", "/tables/players:insert").
			WithBodyString("{invalid json").Do()

		biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
	})
}
