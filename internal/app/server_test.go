package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spendlens/spendlens/internal/expense"
	"github.com/spendlens/spendlens/internal/ingest"
	"github.com/spendlens/spendlens/internal/rasterize"
	"github.com/spendlens/spendlens/internal/scanning"
)

// multipartUpload builds a multipart body with one file part carrying an
// explicit content type.
func multipartUpload(filename, contentType string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())

	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		store      *mockStore
		files      *mockFileStore
		extractor  *stubExtractor
		rasterizer *stubRasterizer
		auth       BasicAuth
		server     *Server
		recorder   *httptest.ResponseRecorder
		now        time.Time
	)

	BeforeEach(func() {
		store = &mockStore{}
		files = newMockFileStore()
		extractor = &stubExtractor{}
		rasterizer = &stubRasterizer{}
		auth = BasicAuth{}
		recorder = httptest.NewRecorder()
		now = time.Date(2024, time.October, 21, 12, 0, 0, 0, time.UTC)
	})

	buildServer := func() *Server {
		pipeline := ingest.NewPipeline(extractor, rasterizer)
		service := NewServiceWithDeps(store, files, pipeline, &seqIDs{}, &fixedClock{now: now})
		return NewServer(service, auth)
	}

	JustBeforeEach(func() {
		server = buildServer()
	})

	decode := func(body *bytes.Buffer) map[string]any {
		var out map[string]any
		Expect(json.Unmarshal(body.Bytes(), &out)).To(Succeed())
		return out
	}

	Describe("authentication", func() {
		When("no credentials are configured", func() {
			It("should allow anonymous requests", func() {
				req := httptest.NewRequest("GET", "/api/expenses", nil)
				server.ServeHTTP(recorder, req)
				Expect(recorder.Code).To(Equal(http.StatusOK))
			})
		})

		When("credentials are configured", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "admin", Password: "secret"}
			})

			It("should reject requests without credentials", func() {
				req := httptest.NewRequest("GET", "/api/expenses", nil)
				server.ServeHTTP(recorder, req)
				Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
				Expect(recorder.Header().Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			})

			It("should reject wrong credentials", func() {
				req := httptest.NewRequest("GET", "/api/expenses", nil)
				req.SetBasicAuth("admin", "wrong")
				server.ServeHTTP(recorder, req)
				Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
			})

			It("should accept correct credentials", func() {
				req := httptest.NewRequest("GET", "/api/expenses", nil)
				req.SetBasicAuth("admin", "secret")
				server.ServeHTTP(recorder, req)
				Expect(recorder.Code).To(Equal(http.StatusOK))
			})
		})
	})

	Describe("GET /api/expenses", func() {
		BeforeEach(func() {
			store.expenses = []expense.Expense{
				{ID: "a", Payee: "Inside", Amount: 1500, Date: "2024-10-16", Category: expense.CategoryFood},
				{ID: "b", Payee: "Outside", Amount: 2000, Date: "2024-09-01", Category: expense.CategoryFood},
			}
		})

		It("should return every expense and the total", func() {
			req := httptest.NewRequest("GET", "/api/expenses", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			body := decode(recorder.Body)
			Expect(body["expenses"]).To(HaveLen(2))
			Expect(body["total"]).To(BeEquivalentTo(3500))
		})

		It("should filter to the requested period", func() {
			req := httptest.NewRequest("GET", "/api/expenses?range=week&date=2024-10-16", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			body := decode(recorder.Body)
			Expect(body["expenses"]).To(HaveLen(1))
			Expect(body["total"]).To(BeEquivalentTo(1500))
		})

		It("should treat range=all as unfiltered", func() {
			req := httptest.NewRequest("GET", "/api/expenses?range=all", nil)
			server.ServeHTTP(recorder, req)

			body := decode(recorder.Body)
			Expect(body["expenses"]).To(HaveLen(2))
		})

		It("should reject an unknown range", func() {
			req := httptest.NewRequest("GET", "/api/expenses?range=decade", nil)
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject a malformed date", func() {
			req := httptest.NewRequest("GET", "/api/expenses?range=week&date=10/16/2024", nil)
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/expenses", func() {
		It("should create an expense from valid JSON", func() {
			payload := `{"payee": "Corner Cafe", "amount": 2599, "date": "2024-10-20", "category": "Food"}`
			req := httptest.NewRequest("POST", "/api/expenses", bytes.NewBufferString(payload))
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusCreated))
			body := decode(recorder.Body)
			Expect(body["id"]).To(Equal("id-1"))
			Expect(body["payee"]).To(Equal("Corner Cafe"))
		})

		It("should reject a body that is not JSON", func() {
			req := httptest.NewRequest("POST", "/api/expenses", bytes.NewBufferString("not json"))
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject an invalid expense", func() {
			payload := `{"payee": "", "amount": 100, "date": "2024-10-20", "category": "Food"}`
			req := httptest.NewRequest("POST", "/api/expenses", bytes.NewBufferString(payload))
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/expenses/{id}", func() {
		BeforeEach(func() {
			store.expenses = []expense.Expense{
				{ID: "a", Payee: "Inside", Amount: 1500, Date: "2024-10-16", Category: expense.CategoryFood},
			}
		})

		It("should return the expense", func() {
			req := httptest.NewRequest("GET", "/api/expenses/a", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			body := decode(recorder.Body)
			Expect(body["payee"]).To(Equal("Inside"))
		})

		It("should 404 on an unknown ID", func() {
			req := httptest.NewRequest("GET", "/api/expenses/nope", nil)
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("DELETE /api/expenses/{id}", func() {
		BeforeEach(func() {
			store.expenses = []expense.Expense{
				{ID: "a", Payee: "Inside", Amount: 1500, Date: "2024-10-16", Category: expense.CategoryFood},
			}
		})

		It("should delete and return no content", func() {
			req := httptest.NewRequest("DELETE", "/api/expenses/a", nil)
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusNoContent))
		})

		It("should 404 on an unknown ID", func() {
			req := httptest.NewRequest("DELETE", "/api/expenses/nope", nil)
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/expenses/{id}/file", func() {
		BeforeEach(func() {
			store.expenses = []expense.Expense{
				{ID: "a", Payee: "Inside", Amount: 1500, Date: "2024-10-16", Category: expense.CategoryFood, ReceiptFile: "doc.pdf"},
			}
		})

		JustBeforeEach(func() {
			files.files["doc.pdf"] = []byte("pdf-data")
		})

		It("should serve the stored file with its content type", func() {
			req := httptest.NewRequest("GET", "/api/expenses/a/file", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(recorder.Header().Get("Content-Type")).To(Equal("application/pdf"))
			Expect(recorder.Body.Bytes()).To(Equal([]byte("pdf-data")))
		})

		It("should 404 on an unknown ID", func() {
			req := httptest.NewRequest("GET", "/api/expenses/nope/file", nil)
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /api/ingest/image", func() {
		BeforeEach(func() {
			extractor.result = &scanning.ExtractedExpense{
				Payee:    "Corner Cafe",
				Amount:   25.99,
				Date:     "2024-10-20",
				Category: expense.CategoryFood,
			}
		})

		It("should return a draft for review", func() {
			body, contentType := multipartUpload("receipt.jpg", "image/jpeg", []byte("jpeg-bytes"))
			req := httptest.NewRequest("POST", "/api/ingest/image", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			resp := decode(recorder.Body)
			draft := resp["draft"].(map[string]any)
			fields := draft["fields"].(map[string]any)
			Expect(fields["payee"]).To(Equal("Corner Cafe"))
			Expect(draft["preview"]).To(HavePrefix("data:image/jpeg;base64,"))
		})

		It("should not commit the draft", func() {
			body, contentType := multipartUpload("receipt.jpg", "image/jpeg", []byte("jpeg-bytes"))
			req := httptest.NewRequest("POST", "/api/ingest/image", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(recorder, req)

			Expect(store.appended).To(BeEmpty())
		})

		When("extraction fails", func() {
			BeforeEach(func() {
				extractor.err = &scanning.ExtractionError{Err: fmt.Errorf("model down")}
			})

			It("should return 502 with the preview still attached", func() {
				body, contentType := multipartUpload("receipt.jpg", "image/jpeg", []byte("jpeg-bytes"))
				req := httptest.NewRequest("POST", "/api/ingest/image", body)
				req.Header.Set("Content-Type", contentType)
				server.ServeHTTP(recorder, req)

				Expect(recorder.Code).To(Equal(http.StatusBadGateway))
				resp := decode(recorder.Body)
				Expect(resp["error"]).To(ContainSubstring("failed to analyze the receipt"))
				result := resp["result"].(map[string]any)
				draft := result["draft"].(map[string]any)
				Expect(draft["preview"]).To(HavePrefix("data:image/jpeg;base64,"))
			})
		})

		When("the file is not an image", func() {
			It("should return 415", func() {
				body, contentType := multipartUpload("notes.txt", "text/plain", []byte("hello"))
				req := httptest.NewRequest("POST", "/api/ingest/image", body)
				req.Header.Set("Content-Type", contentType)
				server.ServeHTTP(recorder, req)

				Expect(recorder.Code).To(Equal(http.StatusUnsupportedMediaType))
			})
		})

		It("should reject a request with no file part", func() {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			Expect(writer.Close()).To(Succeed())
			req := httptest.NewRequest("POST", "/api/ingest/image", body)
			req.Header.Set("Content-Type", writer.FormDataContentType())
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/ingest/pdf", func() {
		BeforeEach(func() {
			rasterizer.pages = []rasterize.PageImage{
				{Number: 1, Data: []byte("p1"), MIMEType: "image/jpeg", PreviewURI: "data:image/jpeg;base64,p1"},
				{Number: 2, Data: []byte("p2"), MIMEType: "image/jpeg", PreviewURI: "data:image/jpeg;base64,p2"},
			}
			extractor.result = &scanning.ExtractedExpense{
				Payee:    "Store",
				Amount:   10,
				Date:     "2024-10-20",
				Category: expense.CategoryGroceries,
			}
		})

		It("should commit and return the batch", func() {
			body, contentType := multipartUpload("statement.pdf", "application/pdf", []byte("%PDF-1.4"))
			req := httptest.NewRequest("POST", "/api/ingest/pdf", body)
			req.Header.Set("Content-Type", contentType)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusCreated))
			resp := decode(recorder.Body)
			Expect(resp["expenses"]).To(HaveLen(2))
			Expect(store.appended).To(HaveLen(1))
		})

		When("the PDF cannot be rasterized", func() {
			BeforeEach(func() {
				rasterizer.err = &rasterize.RasterizationError{Err: fmt.Errorf("corrupt")}
			})

			It("should return 422", func() {
				body, contentType := multipartUpload("statement.pdf", "application/pdf", []byte("junk"))
				req := httptest.NewRequest("POST", "/api/ingest/pdf", body)
				req.Header.Set("Content-Type", contentType)
				server.ServeHTTP(recorder, req)

				Expect(recorder.Code).To(Equal(http.StatusUnprocessableEntity))
			})
		})

		When("every page fails extraction", func() {
			BeforeEach(func() {
				extractor.err = fmt.Errorf("unreadable")
			})

			It("should return 422 naming the page count", func() {
				body, contentType := multipartUpload("statement.pdf", "application/pdf", []byte("%PDF-1.4"))
				req := httptest.NewRequest("POST", "/api/ingest/pdf", body)
				req.Header.Set("Content-Type", contentType)
				server.ServeHTTP(recorder, req)

				Expect(recorder.Code).To(Equal(http.StatusUnprocessableEntity))
				resp := decode(recorder.Body)
				Expect(resp["error"]).To(ContainSubstring("all 2 pages"))
			})
		})
	})

	Describe("GET /api/summary/categories", func() {
		BeforeEach(func() {
			store.expenses = []expense.Expense{
				{ID: "a", Payee: "A", Amount: 1000, Date: "2024-10-16", Category: expense.CategoryFood},
				{ID: "b", Payee: "B", Amount: 3000, Date: "2024-10-16", Category: expense.CategoryTransport},
			}
		})

		It("should return rows sorted by total", func() {
			req := httptest.NewRequest("GET", "/api/summary/categories", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			resp := decode(recorder.Body)
			rows := resp["rows"].([]any)
			Expect(rows).To(HaveLen(2))
			first := rows[0].(map[string]any)
			Expect(first["label"]).To(Equal("Transport"))
			Expect(resp["total"]).To(BeEquivalentTo(4000))
		})
	})

	Describe("GET /api/timeline", func() {
		BeforeEach(func() {
			store.expenses = []expense.Expense{
				{ID: "a", Payee: "A", Amount: 1000, Date: "2024-10-21", Category: expense.CategoryFood},
			}
		})

		It("should label the current day Today", func() {
			req := httptest.NewRequest("GET", "/api/timeline", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			resp := decode(recorder.Body)
			months := resp["months"].([]any)
			Expect(months).To(HaveLen(1))
			month := months[0].(map[string]any)
			Expect(month["label"]).To(Equal("October 2024"))
			days := month["days"].([]any)
			day := days[0].(map[string]any)
			Expect(day["label"]).To(Equal("Today"))
		})
	})

	Describe("GET /api/period", func() {
		It("should return boundaries and navigation for a week", func() {
			req := httptest.NewRequest("GET", "/api/period?range=week&date=2024-10-16", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			resp := decode(recorder.Body)
			Expect(resp["label"]).To(Equal("Oct 13 - 19, 2024"))
			Expect(resp["start"]).To(Equal("2024-10-13"))
			Expect(resp["end"]).To(Equal("2024-10-19"))
			Expect(resp["prev"]).To(Equal("2024-10-09"))
			Expect(resp["next"]).To(Equal("2024-10-23"))
			Expect(resp["next_disabled"]).To(BeFalse())
		})

		It("should disable next for the current period", func() {
			req := httptest.NewRequest("GET", "/api/period?range=month&date=2024-10-05", nil)
			server.ServeHTTP(recorder, req)

			resp := decode(recorder.Body)
			Expect(resp["next_disabled"]).To(BeTrue())
		})

		It("should reject an unknown range", func() {
			req := httptest.NewRequest("GET", "/api/period?range=fortnight", nil)
			server.ServeHTTP(recorder, req)
			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /", func() {
		It("should serve the HTML interface", func() {
			req := httptest.NewRequest("GET", "/", nil)
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(recorder.Header().Get("Content-Type")).To(ContainSubstring("text/html"))
			Expect(recorder.Body.String()).To(ContainSubstring("<!DOCTYPE html>"))
		})
	})
})
