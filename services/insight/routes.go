// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package insight

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all insight routes with the router group.
//
// Description:
//
//	Registers the /v1/insight/* endpoints. The router group should
//	already have any required middleware applied.
//
// Endpoints:
//
//	POST /v1/insight/classify - Classify a message into an intent
//	POST /v1/insight/meetingref - Detect a specific-meeting reference
//	POST /v1/insight/followup - Detect a follow-up refinement
//	POST /v1/insight/contract/coverage - Resolve contract and disclaimer
//	GET  /v1/insight/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	insight := rg.Group("/insight")
	{
		insight.POST("/classify", handlers.HandleClassify)
		insight.POST("/meetingref", handlers.HandleMeetingRef)
		insight.POST("/followup", handlers.HandleFollowUp)
		insight.POST("/contract/coverage", handlers.HandleCoverage)
		insight.GET("/health", handlers.HandleHealth)
	}
}
