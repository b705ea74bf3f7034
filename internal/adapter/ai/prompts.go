package ai

const identifyPrompt = `Analyze this product image and extract the following information:

1. Product name
2. Brand name
3. Complete ingredients list (if visible)
4. Product category (food, water, cosmetics, cookware, cleaning, supplements, other)

Focus on reading all ingredient text clearly. Look for:
- Main ingredient panel
- "Contains:" statements
- Allergen warnings
- Material composition (for non-food items)

Return ONLY a JSON object with this exact structure:
{
    "product_name": "Exact product name",
    "brand": "Brand name",
    "category": "food/water/cosmetics/cookware/cleaning/supplements/other",
    "ingredients": ["ingredient1", "ingredient2", ...],
    "confidence": "high/medium/low"
}`

const researchPromptTemplate = `You are the Deep Research Agent. The user has requested a comprehensive investigation of this product:

**Product**: %s
**Brand**: %s
**Category**: %s
**Ingredients**: %s

Your task is to generate a comprehensive report with SEVEN sections. Be direct, honest, and hedge toward consumer protection. The user deserves to know what companies don't want them to know.

## 1. EXECUTIVE SUMMARY
One concise paragraph: Should this person buy this product? Why or why not? Be direct and honest.

## 2. THE COMPANY BEHIND IT
- Parent company ownership chain (if any)
- Corporate history and major controversies
- Lobbying activities and political spending (if known)
- Recent lawsuits, settlements, or regulatory actions
- Overall corporate ethics assessment

## 3. INGREDIENT DEEP DIVE
For each concerning ingredient identified:
- Full scientific/chemical name
- What it does in this product (functional purpose)
- Key health research findings (cite studies when possible)
- Regulatory status globally (banned where? allowed where?)
- Why it's allowed in the US despite concerns

## 4. SUPPLY CHAIN INVESTIGATION
- Where key ingredients are likely sourced
- Known suppliers and their practices (if information available)
- Labor condition concerns (if documented)
- Environmental impact of production
- Monoculture vs. sustainable farming assessment

## 5. REGULATORY HISTORY
- FDA warning letters (if any)
- Product recalls (if any)
- FTC advertising complaints or enforcement
- State-level regulatory actions
- Note if no significant regulatory issues found

## 6. BETTER ALTERNATIVES
List 3-5 alternative products that:
- Score higher on safety metrics
- Are genuinely healthier (not just marketing)
- Are ethically sourced when possible
- Are reasonably priced and accessible
- Explain WHY each is better

## 7. ACTION ITEMS FOR CONSUMER
What can the consumer do right now?
- Immediate substitutes they can buy today
- Specific brands to support instead
- How to read labels to avoid similar issues
- Resources for learning more about this topic
- One simple action step they can take

IMPORTANT GUIDELINES:
- Be factual and cite sources when making claims
- If information is not available, say so clearly
- Distinguish between documented facts vs. reasonable concerns
- Avoid fear-mongering but don't minimize real risks
- Give actionable advice, not just information
- Remember: Consumer protection over corporate reputation

Generate the complete report now:`
