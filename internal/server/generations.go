package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	generationdomain "github.com/smallbiznis/creditgate/internal/generation/domain"
)

type generateRequest struct {
	Image     string `json:"image"`
	Mask      string `json:"mask"`
	Prompt    string `json:"prompt"`
	PaymentID string `json:"paymentId"`
	Provider  string `json:"provider"`
	generationdomain.InpaintParams
}

type saveGenerationRequest struct {
	PaymentID      string   `json:"paymentId"`
	PaymentToken   string   `json:"paymentToken"`
	AbsType        string   `json:"absType"`
	Gender         string   `json:"gender"`
	InputImageURL  string   `json:"inputImageUrl"`
	MaskImageURL   string   `json:"maskImageUrl"`
	OutputImageURL string   `json:"outputImageUrl"`
	ModelUsed      string   `json:"modelUsed"`
	Provider       string   `json:"provider"`
	Prompt         string   `json:"prompt"`
	Intensity      *float64 `json:"intensity"`
	Strength       *float64 `json:"strength"`
	Seed           *int64   `json:"seed"`
}

type feedbackRequest struct {
	Feedback generationdomain.Feedback `json:"feedback" binding:"required"`
}

type ratingRequest struct {
	Rating   int    `json:"rating" binding:"required"`
	Feedback string `json:"feedback"`
}

func (s *Server) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	tagPayment(c, req.PaymentID)

	result, err := s.generations.Generate(c.Request.Context(), generationdomain.GenerateRequest{
		Image:     req.Image,
		Mask:      req.Mask,
		Prompt:    req.Prompt,
		PaymentID: req.PaymentID,
		Provider:  req.Provider,
		Params:    req.InpaintParams,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) SaveGeneration(c *gin.Context) {
	var req saveGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	tagPayment(c, req.PaymentID)

	gen, err := s.generations.Save(c.Request.Context(), generationdomain.SaveRequest{
		PaymentID:      req.PaymentID,
		PaymentToken:   req.PaymentToken,
		AbsType:        req.AbsType,
		Gender:         req.Gender,
		InputImageURL:  req.InputImageURL,
		MaskImageURL:   req.MaskImageURL,
		OutputImageURL: req.OutputImageURL,
		ModelUsed:      req.ModelUsed,
		Provider:       req.Provider,
		Prompt:         req.Prompt,
		Intensity:      req.Intensity,
		Strength:       req.Strength,
		Seed:           req.Seed,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "generation": gen})
}

func (s *Server) SubmitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, generationdomain.ErrInvalidFeedback)
		return
	}

	if err := s.generations.SubmitFeedback(c.Request.Context(), c.Param("id"), req.Feedback); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) RateGeneration(c *gin.Context) {
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, generationdomain.ErrInvalidRating)
		return
	}

	gen, err := s.generations.Rate(c.Request.Context(), c.Param("id"), req.Rating, req.Feedback)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "generation": gen})
}
