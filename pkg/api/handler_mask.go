package api

import (
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/privacyops/maskd/pkg/masking"
)

// maxScrubTextSize bounds POST /mask/text bodies. Larger payloads belong
// in a bulk scrub job, not an ad-hoc request.
const maxScrubTextSize = 1 << 20

// maskEmailHandler handles POST /api/v1/mask/email.
func (s *Server) maskEmailHandler(c *gin.Context) {
	var req MaskEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if req.Email == "" {
		respondBadRequest(c, "email field is required")
		return
	}

	masked := masking.MaskEmail(req.Email)
	if masked == "" {
		respondBadRequest(c, fmt.Sprintf("%q is not a valid email address", req.Email))
		return
	}

	c.JSON(http.StatusOK, MaskEmailResponse{
		Masked:      masked,
		Placeholder: masking.Placeholder(req.Email),
	})
}

// maskPersonalHandler handles POST /api/v1/mask/personal.
func (s *Server) maskPersonalHandler(c *gin.Context) {
	var req MaskFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if len(req.Fields) == 0 {
		respondBadRequest(c, "fields map is required")
		return
	}

	c.JSON(http.StatusOK, MaskFieldsResponse{Fields: s.engine.MaskPersonalFields(req.Fields)})
}

// maskFinancialHandler handles POST /api/v1/mask/financial.
func (s *Server) maskFinancialHandler(c *gin.Context) {
	var req MaskFinancialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if len(req.Fields) == 0 {
		respondBadRequest(c, "fields map is required")
		return
	}

	var explicit map[string]masking.FinancialType
	if len(req.Types) > 0 {
		explicit = make(map[string]masking.FinancialType, len(req.Types))
		for field, t := range req.Types {
			ft := masking.FinancialType(t)
			switch ft {
			case masking.FinancialCreditCard, masking.FinancialBankAccount, masking.FinancialTaxID:
				explicit[field] = ft
			default:
				respondBadRequest(c, fmt.Sprintf("unknown financial type %q for field %q", t, field))
				return
			}
		}
	}

	c.JSON(http.StatusOK, MaskFieldsResponse{Fields: s.engine.MaskFinancialFields(req.Fields, explicit)})
}

// maskWebHandler handles POST /api/v1/mask/web.
func (s *Server) maskWebHandler(c *gin.Context) {
	var req MaskFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if len(req.Fields) == 0 {
		respondBadRequest(c, "fields map is required")
		return
	}

	c.JSON(http.StatusOK, MaskFieldsResponse{Fields: s.engine.MaskWebFields(req.Fields)})
}

// scrubTextHandler handles POST /api/v1/mask/text.
func (s *Server) scrubTextHandler(c *gin.Context) {
	var req ScrubTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if req.Text == "" {
		respondBadRequest(c, "text field is required")
		return
	}
	if len(req.Text) > maxScrubTextSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: fmt.Sprintf("text exceeds maximum size of %d bytes", maxScrubTextSize),
		})
		return
	}

	c.JSON(http.StatusOK, ScrubTextResponse{Text: s.engine.ScrubText(req.Text)})
}

// whoamiIPHandler handles GET /api/v1/whoami/ip. Resolves the requester's
// address from proxy headers in priority order, falling back to the
// connection's remote address, and returns its anonymized form. No source
// with a valid address yields a null anonymized_ip.
func (s *Server) whoamiIPHandler(c *gin.Context) {
	remote := c.Request.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}

	sources := []string{
		c.GetHeader("X-Forwarded-For"),
		c.GetHeader("X-Real-IP"),
		remote,
	}

	resp := WhoamiResponse{}
	if ip, ok := masking.AnonymizeRequestIP(sources); ok {
		resp.AnonymizedIP = &ip
	}
	c.JSON(http.StatusOK, resp)
}
